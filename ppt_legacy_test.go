package ragprep

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record encodes one PowerPoint record header plus body.
func record(ver, instance, typ uint16, body []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, ver|instance<<4)
	binary.Write(&buf, binary.LittleEndian, typ)
	binary.Write(&buf, binary.LittleEndian, uint32(len(body)))
	buf.Write(body)
	return buf.Bytes()
}

func container(typ uint16, children ...[]byte) []byte {
	return record(0xF, 0, typ, bytes.Join(children, nil))
}

func textHeader(textType uint32) []byte {
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, textType)
	return record(0, 0, recTextHeaderAtom, body)
}

func textChars(s string) []byte {
	u := utf16.Encode([]rune(s))
	body := make([]byte, len(u)*2)
	for i, c := range u {
		binary.LittleEndian.PutUint16(body[i*2:], c)
	}
	return record(0, 0, recTextCharsAtom, body)
}

func textBytes(s string) []byte {
	return record(0, 0, recTextBytesAtom, []byte(s))
}

func persist() []byte { return record(0, 0, recSlidePersistAtom, make([]byte, 20)) }

func TestLegacySlides(t *testing.T) {
	list := record(0xF, 0, recSlideListWithText, bytes.Join([][]byte{
		persist(),
		textHeader(0), textChars("Welcome"),
		textHeader(1), textChars("First point\rSecond point\vThird"),
		persist(),
		textHeader(6), textBytes("Agenda"),
		textHeader(4), textBytes("Only line"),
	}, nil))
	masters := record(0xF, 1, recSlideListWithText, bytes.Join([][]byte{
		persist(), textHeader(0), textChars("Click to edit Master title style"),
	}, nil))
	doc := container(0x03E8, masters, list)

	slides := legacySlides(doc)
	require.Len(t, slides, 2)
	assert.Equal(t, "Welcome", slides[0].title)
	assert.Equal(t, []string{"First point", "Second point", "Third"}, slides[0].body)
	assert.Equal(t, "Agenda", slides[1].title)
	assert.Equal(t, []string{"Only line"}, slides[1].body)
}

func TestLegacyLooseText(t *testing.T) {
	doc := container(0x03E8,
		textChars("Click to edit Master text styles"),
		container(0x0FF0+1, textBytes("  Loose words  ")),
		textChars(""),
	)
	assert.Equal(t, []string{"Loose words"}, legacyLooseText(doc))
}

func TestLegacyPictures(t *testing.T) {
	png := pngBytes(t, 3, 3)
	header17 := append(bytes.Repeat([]byte{0xAA}, 17), png...)
	header33 := append(bytes.Repeat([]byte{0xBB}, 33), png...)
	stream := bytes.Join([][]byte{
		record(0, 0x6E0, blipPNG, header17),
		record(0, 0x46B, blipJPEG, header33),
		record(0, 0x3D4, 0xF01A, []byte("emf data")),
		record(0, 0x6E0, blipPNG, make([]byte, 10)),
	}, nil)

	pics := legacyPictures(stream)
	require.Len(t, pics, 2)
	assert.Equal(t, png, pics[0])
	assert.Equal(t, png, pics[1])
}

func TestPPTRecordsTruncated(t *testing.T) {
	data := append(textBytes("ok"), record(0, 0, recTextBytesAtom, []byte("cut"))[:10]...)
	recs := pptRecords(data)
	require.Len(t, recs, 1)
	assert.Equal(t, "ok", atomText(recs[0]))
}

func TestLegacyPPTNotOLE(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "old.ppt"), "definitely not a compound file")
	res := NewPresentationProcessor().Process(context.Background(), newRequest(t, src))
	require.True(t, res.Failed())
	assert.Empty(t, res.Markdown)
	assert.Equal(t, "ppt_legacy_parser", ParserOf(res.Err))
	assert.Equal(t, "ppt_legacy_parser", res.Metadata["parser"])
}
