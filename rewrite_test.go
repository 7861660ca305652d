package ragprep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteImageRefs(t *testing.T) {
	decisions := map[string]ImageDecision{
		"img_1":  {Action: ActionSave, Filename: "page1_img1.png"},
		"img_10": {Action: ActionSave, Filename: "page3_img10.jpeg"},
		"img_2":  {Action: ActionRemove},
		"img_3":  {Action: ActionEmbed, DataURI: "data:image/png;base64,AAAA"},
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"saved", "![Figure](img_1)", "![Figure](media/page1_img1.png)"},
		{"title kept", `![Figure](img_1 "Caption")`, `![Figure](media/page1_img1.png "Caption")`},
		{"prefix placeholder", "![a](img_1) ![b](img_10)", "![a](media/page1_img1.png) ![b](media/page3_img10.jpeg)"},
		{"every occurrence", "![a](img_1)\n![a](img_1)", "![a](media/page1_img1.png)\n![a](media/page1_img1.png)"},
		{"removed", "before ![x](img_2) after", "before  after"},
		{"embedded", "![x](img_3)", "![x](data:image/png;base64,AAAA)"},
		{"html double quote", `<img src="img_1" alt="a">`, `<img src="media/page1_img1.png" alt="a">`},
		{"html single quote", `<IMG class='x' src='img_10'>`, `<IMG class='x' src='media/page3_img10.jpeg'>`},
		{"html removed", `<p><img src="img_2"></p>`, `<p></p>`},
		{"unknown untouched", "![x](other.png)", "![x](other.png)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteImageRefs(tt.in, decisions))
		})
	}
}

func TestRewriteImageRefsNoDecisions(t *testing.T) {
	in := "![x](img_1)"
	assert.Equal(t, in, RewriteImageRefs(in, nil))
}
