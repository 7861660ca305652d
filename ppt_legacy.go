package ragprep

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"github.com/sirupsen/logrus"
)

// PowerPoint 97-2003 record types.
const (
	recSlideListWithText = 0x0FF0
	recSlidePersistAtom  = 0x03F3
	recTextHeaderAtom    = 0x0F9F
	recTextCharsAtom     = 0x0FA0
	recTextBytesAtom     = 0x0FA8

	blipJPEG     = 0xF01D
	blipPNG      = 0xF01E
	blipDIB      = 0xF01F
	blipTIFF     = 0xF029
	blipJPEGCMYK = 0xF02A
)

var errNoPPTStream = errors.New("PowerPoint Document stream not found")

// Master slides ship these prompts; they are never real content.
var pptTemplateNoise = []string{
	"Click to edit Master title style",
	"Click to edit Master text styles",
	"Click to edit Master subtitle style",
	"Second level", "Third level", "Fourth level", "Fifth level",
}

type pptRecord struct {
	ver      uint16
	instance uint16
	typ      uint16
	body     []byte
}

func (r pptRecord) container() bool { return r.ver == 0xF }

// pptRecords splits data into sibling records. A truncated trailing record
// ends the list.
func pptRecords(data []byte) []pptRecord {
	var out []pptRecord
	for pos := 0; pos+8 <= len(data); {
		verInst := binary.LittleEndian.Uint16(data[pos:])
		typ := binary.LittleEndian.Uint16(data[pos+2:])
		n := int(binary.LittleEndian.Uint32(data[pos+4:]))
		pos += 8
		if n < 0 || n > len(data)-pos {
			break
		}
		out = append(out, pptRecord{
			ver:      verInst & 0x0F,
			instance: verInst >> 4,
			typ:      typ,
			body:     data[pos : pos+n],
		})
		pos += n
	}
	return out
}

func atomText(rec pptRecord) string {
	switch rec.typ {
	case recTextCharsAtom:
		u16 := make([]uint16, len(rec.body)/2)
		for i := range u16 {
			u16[i] = binary.LittleEndian.Uint16(rec.body[i*2:])
		}
		return string(utf16.Decode(u16))
	case recTextBytesAtom:
		// Low bytes of UTF-16 code units.
		r := make([]rune, len(rec.body))
		for i, b := range rec.body {
			r[i] = rune(b)
		}
		return string(r)
	}
	return ""
}

type legacySlide struct {
	title string
	body  []string
}

// legacySlides reads the slide text lists. Text type 0 and 6 are titles.
func legacySlides(doc []byte) []legacySlide {
	var slides []legacySlide
	var visit func(data []byte)
	visit = func(data []byte) {
		for _, rec := range pptRecords(data) {
			switch {
			case rec.typ == recSlideListWithText && rec.instance == 0:
				slides = append(slides, slidesFromList(rec.body)...)
			case rec.container():
				visit(rec.body)
			}
		}
	}
	visit(doc)
	return slides
}

func slidesFromList(data []byte) []legacySlide {
	var slides []legacySlide
	textType := uint32(1)
	for _, rec := range pptRecords(data) {
		switch rec.typ {
		case recSlidePersistAtom:
			slides = append(slides, legacySlide{})
		case recTextHeaderAtom:
			if len(rec.body) >= 4 {
				textType = binary.LittleEndian.Uint32(rec.body)
			}
		case recTextCharsAtom, recTextBytesAtom:
			if len(slides) == 0 {
				slides = append(slides, legacySlide{})
			}
			cur := &slides[len(slides)-1]
			text := atomText(rec)
			if (textType == 0 || textType == 6) && cur.title == "" {
				cur.title = strings.TrimSpace(strings.NewReplacer("\r", " ", "\v", " ").Replace(text))
				continue
			}
			for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\v' }) {
				if line = strings.TrimSpace(line); line != "" {
					cur.body = append(cur.body, line)
				}
			}
		}
	}
	return slides
}

// legacyLooseText collects every text atom in the stream. It is used when
// the document has no slide list.
func legacyLooseText(doc []byte) []string {
	var lines []string
	var visit func(data []byte)
	visit = func(data []byte) {
		for _, rec := range pptRecords(data) {
			if rec.container() {
				visit(rec.body)
				continue
			}
			text := strings.TrimSpace(atomText(rec))
			if text != "" && !isTemplateNoise(text) {
				lines = append(lines, text)
			}
		}
	}
	visit(doc)
	return lines
}

func isTemplateNoise(text string) bool {
	for _, n := range pptTemplateNoise {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// legacyPictures extracts raster BLIPs from the Pictures stream.
func legacyPictures(data []byte) [][]byte {
	var out [][]byte
	for _, rec := range pptRecords(data) {
		var header int
		switch rec.typ {
		case blipJPEG, blipPNG, blipDIB, blipTIFF, blipJPEGCMYK:
			// One UID plus a tag byte; an odd instance carries a second UID.
			header = 17
			if rec.instance&1 == 1 {
				header = 33
			}
		default:
			continue
		}
		if len(rec.body) <= header {
			continue
		}
		out = append(out, append([]byte(nil), rec.body[header:]...))
	}
	return out
}

func readPPTStreams(path string) (doc, pictures []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	cf, err := mscfb.New(f)
	if err != nil {
		return nil, nil, fmt.Errorf("open OLE2 container: %w", err)
	}
	for entry, nerr := cf.Next(); nerr == nil; entry, nerr = cf.Next() {
		switch entry.Name {
		case "PowerPoint Document":
			if doc, err = io.ReadAll(entry); err != nil {
				return nil, nil, err
			}
		case "Pictures":
			if pictures, err = io.ReadAll(entry); err != nil {
				return nil, nil, err
			}
		}
	}
	if len(doc) == 0 {
		return nil, nil, errNoPPTStream
	}
	return doc, pictures, nil
}

func processLegacyPPT(req *Request) (res *Result) {
	log := req.log().WithFields(logrus.Fields{"file": req.SourcePath, "parser": pptParser})
	defer func() {
		// Record walking indexes untrusted lengths.
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("legacy presentation parse panicked")
			res = failWith(req.SourcePath, pptParser, fmt.Errorf("corrupt presentation: %v", r))
		}
	}()

	doc, pictures, err := readPPTStreams(req.SourcePath)
	if err != nil {
		log.WithError(err).Error("read legacy presentation failed")
		return failWith(req.SourcePath, pptParser, err)
	}

	slides := legacySlides(doc)
	if len(slides) == 0 {
		if lines := legacyLooseText(doc); len(lines) > 0 {
			slides = []legacySlide{{body: lines}}
		}
	}
	images := legacyPictures(pictures)
	if len(slides) == 0 && len(images) == 0 {
		return failWith(req.SourcePath, pptParser, errors.New("no text or pictures found in presentation"))
	}

	meta := baseMetadata(req.SourcePath, pptParser)
	meta["slide_count"] = len(slides)
	meta["title"] = nil
	var parts []string
	if len(slides) > 0 && slides[0].title != "" {
		meta["title"] = slides[0].title
		parts = append(parts, "# "+slides[0].title+"\n")
	}
	for i, s := range slides {
		title := s.title
		if title == "" {
			title = fmt.Sprintf("Slide %d", i+1)
		}
		parts = append(parts, "## "+title+"\n")
		var lines []string
		for _, line := range s.body {
			lines = append(lines, "* "+line)
		}
		if len(lines) > 0 {
			parts = append(parts, strings.Join(lines, "\n"))
		}
		parts = append(parts, "\n---\n")
	}

	// Pictures are stored deck-wide and cannot be placed on their slide.
	saved := 0
	for _, data := range images {
		name := pptImageName(saved, data)
		if err := os.WriteFile(filepath.Join(req.MediaDir, name), data, 0o644); err != nil {
			log.WithError(err).Warn("failed to save picture")
			continue
		}
		if saved == 0 {
			parts = append(parts, "## Embedded Images\n")
		}
		parts = append(parts, fmt.Sprintf("\n![Image %d](media/%s)\n", saved, name))
		saved++
	}
	meta["image_count"] = saved
	return succeed(strings.Join(parts, "\n"), meta)
}
