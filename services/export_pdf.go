package services

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// getChromePath returns the Chrome executable path from environment variable
func getChromePath() string {
	return os.Getenv("CHROME_PATH")
}

// Estimated widths in points, used to split the 21 columns into blocks
// that fit an A3 landscape page. Blocks are stacked vertically.
var pdfColWidths = map[int]int{
	0: 120, 1: 130, 2: 80, 3: 90, 4: 90, 5: 90,
	6: 130, 7: 130, 8: 140, 9: 140, 10: 90, 11: 90,
	12: 120, 13: 110, 14: 100, 15: 150, 16: 130,
	17: 110, 18: 110, 19: 110, 20: 110,
}

// A3 landscape with 28pt margins.
const pdfUsableWidth = 1190 - 2*28

var exportPDFTemplate = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Helvetica, Arial, sans-serif; font-size: 8pt; }
  h1 { font-size: 12pt; margin-bottom: 12px; }
  table { border-collapse: collapse; margin-bottom: 18px; table-layout: fixed; }
  th, td { border: 1px solid #888; padding: 3px 5px; text-align: left; vertical-align: top; word-wrap: break-word; }
  th { background: #e8e8e8; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Blocks}}
<table>
  <colgroup>
    {{range .Widths}}<col style="width: {{.}}pt">{{end}}
  </colgroup>
  <thead>
    <tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
  </thead>
  <tbody>
    {{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
    {{end}}
  </tbody>
</table>
{{end}}
</body>
</html>`))

type pdfBlock struct {
	Headers []string
	Widths  []int
	Rows    [][]string
}

func splitColumnBlocks() [][]int {
	var blocks [][]int
	var current []int
	width := 0
	for idx := range ExportColumns {
		w := pdfColWidths[idx]
		if w == 0 {
			w = 100
		}
		if len(current) > 0 && width+w > pdfUsableWidth {
			blocks = append(blocks, current)
			current = nil
			width = 0
		}
		current = append(current, idx)
		width += w
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// RenderSeguimientosPDFHTML builds the HTML document the PDF is printed
// from, with the table split into column blocks.
func RenderSeguimientosPDFHTML(title string, rows []ExportRow) (string, error) {
	data := struct {
		Title  string
		Blocks []pdfBlock
	}{Title: title}

	for _, colIdxs := range splitColumnBlocks() {
		block := pdfBlock{}
		for _, i := range colIdxs {
			block.Headers = append(block.Headers, ExportColumns[i].Title)
			w := pdfColWidths[i]
			if w == 0 {
				w = 100
			}
			block.Widths = append(block.Widths, w)
		}
		for _, row := range rows {
			cells := make([]string, 0, len(colIdxs))
			for _, i := range colIdxs {
				cells = append(cells, row[ExportColumns[i].Key])
			}
			block.Rows = append(block.Rows, cells)
		}
		data.Blocks = append(data.Blocks, block)
	}

	var buf strings.Builder
	if err := exportPDFTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render export template: %w", err)
	}
	return buf.String(), nil
}

// GenerateSeguimientosPDF prints the export table to PDF with headless
// Chrome, landscape A3 so the wide blocks fit.
func GenerateSeguimientosPDF(ctx context.Context, title string, rows []ExportRow) ([]byte, error) {
	htmlContent, err := RenderSeguimientosPDFHTML(title, rows)
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	if chromePath := getChromePath(); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// A3 landscape in inches
	const paperWidth, paperHeight = 16.54, 11.69
	const margin = 28.0 / 72.0

	var pdfBuf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.Sleep(100),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithLandscape(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				WithPrintBackground(true).
				WithDisplayHeaderFooter(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfBuf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return pdfBuf, nil
}
