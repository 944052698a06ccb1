package parser

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"pdfrag/internal/config"
	"pdfrag/internal/models"
)

var (
	docxParagraphRe = regexp.MustCompile(`</w:p>`)
	xmlTagRe        = regexp.MustCompile(`<[^>]+>`)
)

// LoadDirectory parses every supported file directly inside dir, in file name
// order, and returns their pages in that order. Hidden files, directories and
// extensions outside cfg.Extensions are skipped.
func LoadDirectory(dir string, cfg config.LoaderConfig) ([]models.Page, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to read directory %s: %v", models.ErrSourceUnreadable, dir, err)
	}

	var (
		pages []models.Page
		files int
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !slices.Contains(cfg.Extensions, strings.ToLower(filepath.Ext(name))) {
			continue
		}

		filePath := filepath.ToSlash(filepath.Join(dir, name))
		filePages, err := ParseFile(filePath)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: failed to parse %s: %v", models.ErrSourceUnreadable, filePath, err)
		}
		log.Debug().Str("file", filePath).Int("pages", len(filePages)).Msg("Loaded document")

		pages = append(pages, filePages...)
		files++
	}

	return pages, files, nil
}

// ParseFile extracts the pages of a single document. The returned pages carry
// filePath as their Source.
func ParseFile(filePath string) ([]models.Page, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".xlsx", ".xlsm":
		return parseXLSX(filePath)
	case ".md", ".markdown":
		return parseMarkdown(filePath)
	case ".txt":
		return parseText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// parsePDF returns one page per PDF page, numbered from 0.
func parsePDF(filePath string) ([]models.Page, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	fonts := make(map[string]*pdf.Font)
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, models.Page{
			Content: pageText,
			Source:  filePath,
			Page:    models.PageNumber(i - 1),
		})
	}
	return pages, nil
}

// DOCX has no page numbers
func parseDOCX(filePath string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := extractTextFromXML(r.Editable().GetContent(), docxParagraphRe)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return []models.Page{{Content: content, Source: filePath}}, nil
}

// parseXLSX returns one page per sheet, numbered from 0 in sheet order.
func parseXLSX(filePath string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
		pages = append(pages, models.Page{
			Content: sb.String(),
			Source:  filePath,
			Page:    models.PageNumber(sheetNum),
		})
	}
	return pages, nil
}

func parseMarkdown(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	content, err := markdownToText(data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return []models.Page{{Content: content, Source: filePath}}, nil
}

func parseText(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []models.Page{{Content: string(data), Source: filePath}}, nil
}

// markdownToText walks the goldmark AST and keeps only the text, with block
// elements separated by blank lines so the splitter sees paragraph breaks.
func markdownToText(source []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Kind() == ast.KindListItem {
				buf.WriteString("\n")
			}
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument && n.Parent() != nil && n.Parent().Kind() == ast.KindDocument {
				buf.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteString("\n")
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(buf.String()), nil
}

// extractTextFromXML turns paragraph ends into newlines and drops all tags.
func extractTextFromXML(xmlContent string, paragraphEnd *regexp.Regexp) string {
	withBreaks := paragraphEnd.ReplaceAllString(xmlContent, "\n")
	plain := html.UnescapeString(xmlTagRe.ReplaceAllString(withBreaks, ""))

	var lines []string
	for _, line := range strings.Split(plain, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
