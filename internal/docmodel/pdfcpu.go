package docmodel

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder for DecodeConfig on replacement data
	"image/png"
	"os"
	"sort"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"
)

// PDFProvider opens PDF files with pdfcpu for object-level access and
// go-fitz for text extraction.
type PDFProvider struct{}

// NewPDFProvider returns the production document-model provider.
func NewPDFProvider() *PDFProvider { return &PDFProvider{} }

func (PDFProvider) Open(path string) (Document, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, &OpenError{Path: path, Cause: err}
	}
	// Optimization populates per-page image and font tables.
	if err := api.OptimizeContext(ctx); err != nil {
		return nil, &OpenError{Path: path, Cause: err}
	}
	fz, err := fitz.New(path)
	if err != nil {
		return nil, &OpenError{Path: path, Cause: err}
	}
	return &pdfDocument{path: path, ctx: ctx, fz: fz}, nil
}

type pdfDocument struct {
	path string
	ctx  *model.Context
	fz   *fitz.Document
}

func (d *pdfDocument) PageCount() int { return d.ctx.PageCount }

func (d *pdfDocument) PageText(page int) (string, error) {
	if page < 1 || page > d.fz.NumPage() {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", page, d.fz.NumPage())
	}
	return d.fz.Text(page - 1)
}

func (d *pdfDocument) PageImages(page int) ([]ImageInfo, error) {
	if page < 1 || page > d.ctx.PageCount {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", page, d.ctx.PageCount)
	}
	pageImages := d.ctx.Optimize.PageImages
	if page-1 >= len(pageImages) || pageImages[page-1] == nil {
		return nil, nil
	}
	objNrs := make([]int, 0, len(pageImages[page-1]))
	for objNr, used := range pageImages[page-1] {
		if used {
			objNrs = append(objNrs, objNr)
		}
	}
	sort.Ints(objNrs)

	infos := make([]ImageInfo, 0, len(objNrs))
	for _, objNr := range objNrs {
		imgObj, ok := d.ctx.Optimize.ImageObjects[objNr]
		if !ok || imgObj.ImageDict == nil {
			continue
		}
		infos = append(infos, imageInfo(ImageRef(objNr), imgObj.ImageDict))
	}
	return infos, nil
}

func imageInfo(ref ImageRef, sd *types.StreamDict) ImageInfo {
	info := ImageInfo{Ref: ref, BitsPerComponent: 8, ColorSpace: "unknown", Codec: "unknown"}
	if w := sd.IntEntry("Width"); w != nil {
		info.Width = *w
	}
	if h := sd.IntEntry("Height"); h != nil {
		info.Height = *h
	}
	if bpc := sd.IntEntry("BitsPerComponent"); bpc != nil {
		info.BitsPerComponent = *bpc
	}
	if cs := sd.NameEntry("ColorSpace"); cs != nil {
		info.ColorSpace = *cs
	}
	if len(sd.FilterPipeline) > 0 {
		switch sd.FilterPipeline[len(sd.FilterPipeline)-1].Name {
		case "DCTDecode":
			info.Codec = "jpeg"
		case "JPXDecode":
			info.Codec = "jpx"
		case "FlateDecode", "LZWDecode":
			info.Codec = "png"
		case "CCITTFaxDecode":
			info.Codec = "ccitt"
		}
	}
	if sd.Raw != nil {
		info.SizeBytes = int64(len(sd.Raw))
	} else if sd.StreamLength != nil {
		info.SizeBytes = *sd.StreamLength
	}
	return info
}

func (d *pdfDocument) PageHasFonts(page int) (bool, error) {
	if page < 1 || page > d.ctx.PageCount {
		return false, fmt.Errorf("page %d out of range (document has %d pages)", page, d.ctx.PageCount)
	}
	pageFonts := d.ctx.Optimize.PageFonts
	if page-1 >= len(pageFonts) || pageFonts[page-1] == nil {
		return false, nil
	}
	for _, used := range pageFonts[page-1] {
		if used {
			return true, nil
		}
	}
	return false, nil
}

func (d *pdfDocument) imageDict(ref ImageRef) (*types.StreamDict, error) {
	imgObj, ok := d.ctx.Optimize.ImageObjects[int(ref)]
	if !ok || imgObj.ImageDict == nil {
		return nil, fmt.Errorf("no image object %d", ref)
	}
	return imgObj.ImageDict, nil
}

// ExtractImage returns the image stream as bytes a standard codec can
// decode. DCT streams are JPEG already; flate streams carry raw samples
// and are rewrapped as PNG for 8-bit gray/RGB images. Anything else is an
// ExtractError, which callers treat as a skip.
func (d *pdfDocument) ExtractImage(ref ImageRef) ([]byte, error) {
	sd, err := d.imageDict(ref)
	if err != nil {
		return nil, &ExtractError{Ref: ref, Cause: err}
	}
	info := imageInfo(ref, sd)
	switch info.Codec {
	case "jpeg", "jpx":
		if sd.Raw == nil {
			return nil, &ExtractError{Ref: ref, Cause: fmt.Errorf("empty image stream")}
		}
		return sd.Raw, nil
	case "png":
		b, err := d.rewrapAsPNG(sd, info)
		if err != nil {
			return nil, &ExtractError{Ref: ref, Cause: err}
		}
		return b, nil
	default:
		return nil, &ExtractError{Ref: ref, Cause: fmt.Errorf("unsupported image codec %q", info.Codec)}
	}
}

func (d *pdfDocument) rewrapAsPNG(sd *types.StreamDict, info ImageInfo) ([]byte, error) {
	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("decode stream: %w", err)
	}
	if info.BitsPerComponent != 8 || info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("unsupported sample layout (%d bpc, %dx%d)", info.BitsPerComponent, info.Width, info.Height)
	}
	samples := sd.Content
	var img image.Image
	switch info.ColorSpace {
	case "DeviceGray":
		if len(samples) < info.Width*info.Height {
			return nil, fmt.Errorf("short gray sample data")
		}
		g := image.NewGray(image.Rect(0, 0, info.Width, info.Height))
		copy(g.Pix, samples[:info.Width*info.Height])
		img = g
	case "DeviceRGB":
		if len(samples) < info.Width*info.Height*3 {
			return nil, fmt.Errorf("short rgb sample data")
		}
		rgba := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
		for i := 0; i < info.Width*info.Height; i++ {
			rgba.Pix[i*4+0] = samples[i*3+0]
			rgba.Pix[i*4+1] = samples[i*3+1]
			rgba.Pix[i*4+2] = samples[i*3+2]
			rgba.Pix[i*4+3] = 0xff
		}
		img = rgba
	default:
		return nil, fmt.Errorf("unsupported colorspace %q", info.ColorSpace)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *pdfDocument) ReplaceImage(ref ImageRef, jpegData []byte) error {
	sd, err := d.imageDict(ref)
	if err != nil {
		return err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(jpegData))
	if err != nil {
		return fmt.Errorf("replacement for image %d is not decodable: %w", ref, err)
	}
	sd.Raw = jpegData
	sd.Content = nil
	length := int64(len(jpegData))
	sd.StreamLength = &length
	sd.FilterPipeline = []types.PDFFilter{{Name: "DCTDecode"}}
	sd.Dict["Filter"] = types.Name("DCTDecode")
	sd.Dict["Width"] = types.Integer(cfg.Width)
	sd.Dict["Height"] = types.Integer(cfg.Height)
	sd.Dict["ColorSpace"] = types.Name("DeviceRGB")
	sd.Dict["BitsPerComponent"] = types.Integer(8)
	sd.Dict["Length"] = types.Integer(len(jpegData))
	// Alpha was flattened before encoding; a stale soft mask would ghost.
	delete(sd.Dict, "SMask")
	delete(sd.Dict, "DecodeParms")
	delete(sd.Dict, "Decode")
	return nil
}

// contentStream pairs a page content stream with its object number so a
// mutated copy can be written back into the xref table. Dereference hands
// out StreamDicts by value; editing one in place never reaches the file.
type contentStream struct {
	objNr int
	sd    types.StreamDict
}

// RemoveText drops every BT..ET text block from the page's content
// streams. Images and vector graphics survive untouched.
func (d *pdfDocument) RemoveText(page int) error {
	streams, err := d.pageContentStreams(page)
	if err != nil {
		return err
	}
	for i := range streams {
		cs := &streams[i]
		if err := cs.sd.Decode(); err != nil {
			log.Warn().Err(err).Int("page", page).Msg("content stream decode failed; leaving stream untouched")
			continue
		}
		cs.sd.Content = stripTextBlocks(cs.sd.Content)
		if err := cs.sd.Encode(); err != nil {
			return fmt.Errorf("re-encode content stream for page %d: %w", page, err)
		}
		entry, ok := d.ctx.Table[cs.objNr]
		if !ok || entry == nil {
			return fmt.Errorf("content stream object %d of page %d missing from xref table", cs.objNr, page)
		}
		entry.Object = cs.sd
	}
	return nil
}

func (d *pdfDocument) pageContentStreams(page int) ([]contentStream, error) {
	pageDict, _, _, err := d.ctx.PageDict(page, false)
	if err != nil {
		return nil, fmt.Errorf("page dict %d: %w", page, err)
	}
	obj, found := pageDict.Find("Contents")
	if !found {
		return nil, nil
	}
	var out []contentStream
	collect := func(o types.Object) {
		ir, ok := o.(types.IndirectRef)
		if !ok {
			return
		}
		resolved, err := d.ctx.Dereference(ir)
		if err != nil {
			return
		}
		if sd, ok := resolved.(types.StreamDict); ok {
			out = append(out, contentStream{objNr: ir.ObjectNumber.Value(), sd: sd})
		}
	}
	switch c := obj.(type) {
	case types.IndirectRef:
		resolved, err := d.ctx.Dereference(c)
		if err != nil {
			return nil, fmt.Errorf("dereference contents of page %d: %w", page, err)
		}
		if arr, ok := resolved.(types.Array); ok {
			for _, el := range arr {
				collect(el)
			}
		} else {
			collect(c)
		}
	case types.Array:
		for _, el := range c {
			collect(el)
		}
	}
	return out, nil
}

// stripTextBlocks removes inclusive BT..ET operator spans from a decoded
// content stream. Token boundaries are respected so names like "BTx" or
// string payloads containing the letters pass through.
func stripTextBlocks(content []byte) []byte {
	out := make([]byte, 0, len(content))
	depth := 0
	i := 0
	for i < len(content) {
		if isToken(content, i, "BT") {
			depth++
			i += 2
			continue
		}
		if isToken(content, i, "ET") {
			if depth > 0 {
				depth--
			}
			i += 2
			continue
		}
		if depth == 0 {
			out = append(out, content[i])
		}
		i++
	}
	return out
}

func isToken(b []byte, i int, tok string) bool {
	if i+len(tok) > len(b) || string(b[i:i+len(tok)]) != tok {
		return false
	}
	if i > 0 && !isDelim(b[i-1]) {
		return false
	}
	if i+len(tok) < len(b) && !isDelim(b[i+len(tok)]) {
		return false
	}
	return true
}

func isDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '[', ']', '(', ')', '<', '>', '/':
		return true
	}
	return false
}

func (d *pdfDocument) Save(path string, opts SaveOptions) (int64, error) {
	if opts.GarbageCollect {
		// Re-optimizing prunes objects orphaned by image replacement.
		if err := api.OptimizeContext(d.ctx); err != nil {
			return 0, &SaveError{Path: path, Cause: err}
		}
	}
	// pdfcpu's writer deflates streams and rebuilds the xref on every
	// write; the remaining options are satisfied by that pass.
	if err := api.WriteContextFile(d.ctx, path); err != nil {
		return 0, &SaveError{Path: path, Cause: err}
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0, &SaveError{Path: path, Cause: err}
	}
	return fi.Size(), nil
}

func (d *pdfDocument) Close() error {
	return d.fz.Close()
}
