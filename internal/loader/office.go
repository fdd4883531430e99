package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultMainPath = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix     = "ppt/slides/slide"
	odfContentPath      = "content.xml"
)

var errPartNotFound = errors.New("part not found")

// xmlLayout describes where readable text lives in an office XML part.
// Paragraph elements end a block; when textElems is set only character
// data inside those elements is kept, otherwise all character data inside
// a paragraph is.
type xmlLayout struct {
	paragraph map[string]bool
	textElems map[string]bool
}

var (
	ooxmlLayout = xmlLayout{
		paragraph: map[string]bool{"p": true},
		textElems: map[string]bool{"t": true},
	}
	odfLayout = xmlLayout{
		paragraph: map[string]bool{"p": true, "h": true},
	}
)

// extractDOCX reads the main document part, located through
// [Content_Types].xml and falling back to word/document.xml.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	mainPath := docxDefaultMainPath
	if ct, err := readPart(zr, contentTypesPath); err == nil {
		if p := docxMainPart(ct); p != "" {
			mainPath = p
		}
	}
	data, err := readPart(zr, mainPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	paras, err := xmlParagraphs(data, ooxmlLayout)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %s: %w", mainPath, err)
	}
	return strings.Join(paras, "\n\n"), nil
}

// extractPPTX reads every slide in slide-number order; each slide becomes
// one block.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", fmt.Errorf("extract PPTX: %w", err)
	}
	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePrefix) || path.Ext(f.Name) != ".xml" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, pptxSlidePrefix), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var blocks []string
	for _, s := range slides {
		data, err := readFile(s.file)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		paras, err := xmlParagraphs(data, ooxmlLayout)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %s: %w", s.file.Name, err)
		}
		if len(paras) > 0 {
			blocks = append(blocks, strings.Join(paras, "\n"))
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

// extractOpenDocument handles .odt, .odp and .ods, which all keep their
// body in content.xml.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	data, err := readPart(zr, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	paras, err := xmlParagraphs(data, odfLayout)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	return strings.Join(paras, "\n\n"), nil
}

func openZip(content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("not a zip: %w", err)
	}
	return zr, nil
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return readFile(f)
		}
	}
	return nil, fmt.Errorf("%s: %w", name, errPartNotFound)
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// docxMainPart returns the main document part named in [Content_Types].xml,
// without the leading slash, or "" if none is declared.
func docxMainPart(contentTypes []byte) string {
	var types struct {
		Overrides []struct {
			PartName    string `xml:"PartName,attr"`
			ContentType string `xml:"ContentType,attr"`
		} `xml:"Override"`
	}
	if err := xml.Unmarshal(contentTypes, &types); err != nil {
		return ""
	}
	for _, o := range types.Overrides {
		if o.ContentType == docxMainContentType {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return ""
}

// xmlParagraphs walks the XML tokens of data and returns the trimmed,
// non-empty text of each paragraph in document order. Elements are matched
// by local name so undeclared prefixes are tolerated.
func xmlParagraphs(data []byte, layout xmlLayout) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var (
		paras   []string
		current strings.Builder
		depth   int // open paragraph elements
		inText  int // open text elements
	)
	flush := func() {
		if s := strings.Join(strings.Fields(current.String()), " "); s != "" {
			paras = append(paras, s)
		}
		current.Reset()
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if layout.paragraph[t.Name.Local] {
				depth++
			}
			if layout.textElems[t.Name.Local] {
				inText++
			}
		case xml.EndElement:
			if layout.textElems[t.Name.Local] && inText > 0 {
				inText--
			}
			if layout.paragraph[t.Name.Local] && depth > 0 {
				depth--
				if depth == 0 {
					flush()
				}
			}
		case xml.CharData:
			if depth == 0 && layout.textElems == nil {
				continue
			}
			if layout.textElems != nil && inText == 0 {
				continue
			}
			current.Write(t)
		}
	}
	flush()
	return paras, nil
}
