// Package pdf pulls embedded raster images out of PDF voucher sheets so the
// scan pipeline can treat each page image like a photographed voucher.
package pdf

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageImage is one embedded image together with its position in the sheet.
type PageImage struct {
	Page  int // 1-based page number
	Index int // image index within the page
	Image image.Image
}

// IsPDF reports whether the path names a PDF file.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// ExtractImages returns every embedded image of the selected pages in page
// order. An empty page selection means all pages; selections use the form
// "1-5" or "1,3,5".
func ExtractImages(path, pageSelection string) ([]PageImage, error) {
	pages, err := parsePageSelection(pageSelection)
	if err != nil {
		return nil, fmt.Errorf("invalid page selection %q: %w", pageSelection, err)
	}

	tempDir, err := os.MkdirTemp("", "voucherscan-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create pdf scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	for _, p := range pages {
		pageStrings = append(pageStrings, strconv.Itoa(p))
	}
	if err := api.ExtractImagesFile(path, tempDir, pageStrings, nil); err != nil {
		return nil, fmt.Errorf("extract images from %s: %w", path, err)
	}

	images, err := collectPageImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("collect extracted images: %w", err)
	}
	return images, nil
}

// collectPageImages decodes the files pdfcpu wrote, named like
// page_<num>_image_<idx>.<ext>, and sorts them by page then index.
func collectPageImages(dir string) ([]PageImage, error) {
	var images []PageImage
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		page, index, ok := parsePageFilename(d.Name())
		if !ok {
			return nil
		}
		img, err := decodeFile(path)
		if err != nil {
			// Unsupported embedded format, skip the image.
			return nil
		}
		images = append(images, PageImage{Page: page, Index: index, Image: img})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(images, func(i, j int) bool {
		if images[i].Page != images[j].Page {
			return images[i].Page < images[j].Page
		}
		return images[i].Index < images[j].Index
	})
	return images, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from our own scratch dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	return img, err
}

func parsePageFilename(name string) (page, index int, ok bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(base, "_")
	if len(parts) < 4 || parts[0] != "page" || parts[2] != "image" {
		return 0, 0, false
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	index, err = strconv.Atoi(parts[3])
	if err != nil {
		return 0, 0, false
	}
	return page, index, true
}

// parsePageSelection expands "1-5" and "1,3,5" style selections. Empty input
// selects all pages.
func parsePageSelection(selection string) ([]int, error) {
	if selection == "" {
		return nil, nil
	}
	var pages []int
	for _, token := range strings.Split(selection, ",") {
		expanded, err := expandPageToken(strings.TrimSpace(token))
		if err != nil {
			return nil, err
		}
		pages = append(pages, expanded...)
	}
	return pages, nil
}

func expandPageToken(token string) ([]int, error) {
	if start, end, found := strings.Cut(token, "-"); found {
		first, err := strconv.Atoi(strings.TrimSpace(start))
		if err != nil {
			return nil, fmt.Errorf("invalid start page %q", start)
		}
		last, err := strconv.Atoi(strings.TrimSpace(end))
		if err != nil {
			return nil, fmt.Errorf("invalid end page %q", end)
		}
		if first > last {
			return nil, fmt.Errorf("start page %d after end page %d", first, last)
		}
		out := make([]int, 0, last-first+1)
		for p := first; p <= last; p++ {
			out = append(out, p)
		}
		return out, nil
	}
	page, err := strconv.Atoi(token)
	if err != nil {
		return nil, fmt.Errorf("invalid page number %q", token)
	}
	return []int{page}, nil
}
