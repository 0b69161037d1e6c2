package compress

import (
	"bytes"
	"image"
	"os"

	"github.com/local/pdfsqueeze/internal/docmodel"
)

// fakeDoc is an in-memory document for exercising the engine without
// touching a real PDF. Save writes a file of the next scripted size so
// the engine's rename-on-best bookkeeping runs against real paths.
type fakeDoc struct {
	pages     int
	texts     map[int]string
	fonts     map[int]bool
	images    map[int][]docmodel.ImageInfo
	data      map[docmodel.ImageRef][]byte
	replaced  map[docmodel.ImageRef][]byte
	saveSizes []int64
	saveCalls int
	onSave    func()
	closed    bool
}

func newFakeDoc(pages int) *fakeDoc {
	return &fakeDoc{
		pages:    pages,
		texts:    make(map[int]string),
		fonts:    make(map[int]bool),
		images:   make(map[int][]docmodel.ImageInfo),
		data:     make(map[docmodel.ImageRef][]byte),
		replaced: make(map[docmodel.ImageRef][]byte),
	}
}

func (d *fakeDoc) addImage(page int, ref docmodel.ImageRef, size int64, codec string) {
	d.images[page] = append(d.images[page], docmodel.ImageInfo{
		Ref: ref, Width: 400, Height: 300, BitsPerComponent: 8,
		ColorSpace: "DeviceRGB", SizeBytes: size, Codec: codec,
	})
	d.data[ref] = bytes.Repeat([]byte{0xab}, int(size))
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) PageText(page int) (string, error) { return d.texts[page], nil }

func (d *fakeDoc) PageImages(page int) ([]docmodel.ImageInfo, error) {
	return d.images[page], nil
}

func (d *fakeDoc) PageHasFonts(page int) (bool, error) { return d.fonts[page], nil }

func (d *fakeDoc) ExtractImage(ref docmodel.ImageRef) ([]byte, error) {
	if rep, ok := d.replaced[ref]; ok {
		return rep, nil
	}
	return d.data[ref], nil
}

func (d *fakeDoc) ReplaceImage(ref docmodel.ImageRef, data []byte) error {
	d.replaced[ref] = data
	return nil
}

func (d *fakeDoc) RemoveText(page int) error { return nil }

func (d *fakeDoc) Save(path string, opts docmodel.SaveOptions) (int64, error) {
	if d.onSave != nil {
		d.onSave()
	}
	size := d.saveSizes[len(d.saveSizes)-1]
	if d.saveCalls < len(d.saveSizes) {
		size = d.saveSizes[d.saveCalls]
	}
	d.saveCalls++
	if err := os.WriteFile(path, bytes.Repeat([]byte{0}, int(size)), 0o644); err != nil {
		return 0, err
	}
	return size, nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

type fakeProvider struct{ doc *fakeDoc }

func (p fakeProvider) Open(path string) (docmodel.Document, error) { return p.doc, nil }

// fakeCodec produces deterministic encodings: the JPEG output length is
// encSize(quality), which lets tests steer the strictly-smaller check.
type fakeCodec struct {
	encSize func(quality int) int
	decodes int
	encodes int
}

func (c *fakeCodec) Decode(data []byte) (image.Image, error) {
	c.decodes++
	return image.NewRGBA(image.Rect(0, 0, 400, 300)), nil
}

func (c *fakeCodec) FlattenOpaque(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	return image.NewRGBA(img.Bounds())
}

func (c *fakeCodec) Resize(img image.Image, width, height int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

func (c *fakeCodec) EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	c.encodes++
	return make([]byte, c.encSize(quality)), nil
}
