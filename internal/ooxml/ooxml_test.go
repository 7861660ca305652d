package ooxml

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPackage(t *testing.T, parts map[string]string) *Package {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return NewPackage(zr)
}

func TestRelsPathFor(t *testing.T) {
	assert.Equal(t, "ppt/slides/_rels/slide1.xml.rels", RelsPathFor("ppt/slides/slide1.xml"))
	assert.Equal(t, "_rels/presentation.xml.rels", RelsPathFor("presentation.xml"))
	assert.Equal(t, "ppt/_rels/presentation.xml.rels", RelsPathFor("ppt/presentation.xml"))
}

func TestResolveTarget(t *testing.T) {
	assert.Equal(t, "ppt/media/image1.png", ResolveTarget("ppt/slides/slide1.xml", "../media/image1.png"))
	assert.Equal(t, "ppt/slides/slide2.xml", ResolveTarget("ppt/presentation.xml", "slides/slide2.xml"))
	assert.Equal(t, "ppt/media/x.png", ResolveTarget("ppt/slides/slide1.xml", "/ppt/media/x.png"))
}

func TestPackageRels(t *testing.T) {
	p := buildPackage(t, map[string]string{
		"ppt/slides/slide1.xml": `<sld/>`,
		"ppt/slides/_rels/slide1.xml.rels": `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="` + RelImage + `" Target="../media/image1.png"/>
  <Relationship Id="rId2" Type="hyperlink" Target="https://example.com" TargetMode="External"/>
</Relationships>`,
	})
	rels, err := p.Rels("ppt/slides/slide1.xml")
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, RelImage, rels["rId1"].Type)
	assert.False(t, rels["rId1"].External())
	assert.True(t, rels["rId2"].External())

	none, err := p.Rels("ppt/presentation.xml")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = p.Read("missing.xml")
	assert.Error(t, err)
	assert.True(t, p.Has("ppt/slides/slide1.xml"))
	assert.NoError(t, p.Close())
}

func TestCoreTitle(t *testing.T) {
	p := buildPackage(t, map[string]string{
		"docProps/core.xml": `<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title> Quarterly Review </dc:title></cp:coreProperties>`,
	})
	assert.Equal(t, "Quarterly Review", p.CoreTitle())
	assert.Empty(t, buildPackage(t, map[string]string{}).CoreTitle())
}

func TestNodeLookups(t *testing.T) {
	root, err := ParseNode([]byte(`<p:sldIdLst xmlns:p="urn:p" xmlns:r="` + NSRelationships + `">
  <p:sldId id="256" r:id="rId7"/>
  <p:sldId id="257" r:id="rId8"><p:ext><p:txt>a</p:txt><p:txt>b</p:txt></p:ext></p:sldId>
</p:sldIdLst>`))
	require.NoError(t, err)

	ids := root.ChildrenNamed("sldId")
	require.Len(t, ids, 2)
	v, ok := ids[0].Attr("id")
	assert.True(t, ok)
	assert.Equal(t, "256", v)
	rel, ok := ids[0].RelAttr("id")
	assert.True(t, ok)
	assert.Equal(t, "rId7", rel)
	assert.Equal(t, "none", ids[0].AttrOr("missing", "none"))

	assert.Equal(t, "ab", ids[1].Path("ext").Text())
	assert.Len(t, root.FindAll("txt"), 2)
	assert.Equal(t, "a", root.Find("txt").Text())
	assert.Nil(t, root.Path("sldId", "nope"))
}
