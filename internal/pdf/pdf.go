// Package pdf pulls scanned page images out of PDF documents.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/idextract/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrNoImages is returned when a PDF carries no decodable embedded image.
var ErrNoImages = errors.New("pdf contains no embedded images")

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// IsPDFFile sniffs the header of the file at path.
func IsPDFFile(path string) bool {
	f, err := os.Open(path) //nolint:gosec // G304: caller-provided document path
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	head := make([]byte, len(pdfMagic))
	n, _ := f.Read(head)
	return IsPDF(head[:n])
}

// ExtractImages extracts all images from a PDF file using pdfcpu's extract functionality.
func ExtractImages(filename string, pageRange string) (map[int][]image.Image, error) {
	pageNumbers, err := ParsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "idextract-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	if len(pageNumbers) > 0 {
		pageStrings = make([]string, len(pageNumbers))
		for i, pageNum := range pageNumbers {
			pageStrings[i] = strconv.Itoa(pageNum)
		}
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	result, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return result, nil
}

// FirstPageImage returns the largest embedded image of the lowest-numbered
// page that has one, together with that page number. Failures are reported
// as invalid-image errors.
func FirstPageImage(filename, pageRange string) (image.Image, int, error) {
	pages, err := ExtractImages(filename, pageRange)
	if err != nil {
		return nil, 0, &utils.ImageProcessingError{Operation: "pdf", Err: err}
	}
	img, page := selectFirstPage(pages)
	if img == nil {
		return nil, 0, &utils.ImageProcessingError{Operation: "pdf", Err: ErrNoImages}
	}
	return img, page, nil
}

func selectFirstPage(pages map[int][]image.Image) (image.Image, int) {
	nums := make([]int, 0, len(pages))
	for n, imgs := range pages {
		if len(imgs) > 0 {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return nil, 0
	}
	sort.Ints(nums)
	page := nums[0]

	var best image.Image
	bestArea := -1
	for _, img := range pages[page] {
		b := img.Bounds()
		if area := b.Dx() * b.Dy(); area > bestArea {
			best, bestArea = img, area
		}
	}
	return best, page
}

// collectExtractedImages walks the given directory and groups images by page number.
// It expects filenames in the pdfcpu format: <name>_<page>_<id>.<ext> or page_<num>_image_<idx>.<ext>.
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	result := make(map[int][]image.Image)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		pageNum, err := parsePageFromFilename(info.Name())
		if err != nil {
			return nil
		}

		img, _, err := utils.LoadImage(path)
		if err != nil {
			return nil
		}
		result[pageNum] = append(result[pageNum], img)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parsePageFromFilename extracts the page number from a pdfcpu extracted
// filename: <pdfname>_<page>_<id>.<ext>, or the older page_<num>_image_<idx>.<ext>.
func parsePageFromFilename(filename string) (int, error) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(base, "_")
	if len(parts) >= 3 {
		if pageNum, err := strconv.Atoi(parts[len(parts)-2]); err == nil {
			return pageNum, nil
		}
	}
	if strings.HasPrefix(base, "page_") && len(parts) >= 2 {
		if pageNum, err := strconv.Atoi(parts[1]); err == nil {
			return pageNum, nil
		}
		return 0, errors.New("invalid page number")
	}
	return 0, errors.New("not a page file")
}

// ParsePageRange parses a page range string like "1-5" or "1,3,5".
func ParsePageRange(pageRange string) ([]int, error) {
	if pageRange == "" {
		return nil, nil // Empty means all pages
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
