package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/certificate-verifier/constants"
)

// extractPDF prefers embedded text and only rasterizes when none is present.
func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF, Language: e.cfg.TesseractLang}

	text, pages, err := embeddedText(path, e.cfg.MaxPages)
	res.Method = MethodPDFText
	if err != nil {
		e.logger.Warn("embedded pdf text failed; trying pdftotext", "path", path, "error", err)
		res.Warnings = append(res.Warnings, err.Error())

		var warn []string
		text, pages, warn, err = e.pdfToText(ctx, path)
		res.Method = MethodPdftotext
		res.Warnings = append(res.Warnings, warn...)
		if err != nil {
			// not fatal; rasterizing may still work
			res.Warnings = append(res.Warnings, fmt.Sprintf("pdftotext: %v", err))
			text = ""
		}
	}

	if strings.TrimSpace(text) != "" {
		res.Text = Normalize(text)
		res.Pages = pages
		res.Confidence = heuristicConfidence(res.Text)
		return res, nil
	}

	e.logger.Info("pdf has no embedded text; rasterizing", "path", path, "dpi", e.cfg.DPI)
	text, pages, warn, err := e.pdfToOCR(ctx, path)
	res.Method = MethodPDFOCR
	res.Warnings = append(res.Warnings, warn...)
	if err != nil {
		return res, err
	}
	res.Text = Normalize(text)
	res.Pages = pages
	res.Confidence = heuristicConfidence(res.Text)
	return res, nil
}

// embeddedText reads the text layer page by page. The pdf reader panics on some
// malformed files, so panics are turned into errors.
func embeddedText(path string, maxPages int) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	var b strings.Builder
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pt, err := p.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(pt)
	}
	return b.String(), n, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(strings.TrimRight(text, "\f\n"), "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "cv-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, []string{string(errb)}, fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (page-1.png, page-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sortByPageNumber(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		gray, cleanup, err := grayscaleCopy(img)
		if err != nil {
			warns = append(warns, fmt.Sprintf("%s: %v", filepath.Base(img), err))
			continue
		}
		txt, w, err := e.tesseractOCR(ctx, gray)
		cleanup()
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
		warns = append(warns, w...)
	}
	return b.String(), len(matches), warns, nil
}

// sortByPageNumber orders page-N.png by N, independent of zero padding.
func sortByPageNumber(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndex(base, "-")
		n, err := strconv.Atoi(base[i+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
