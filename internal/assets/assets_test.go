package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garment-configurator/internal/layer"
	"garment-configurator/internal/transform"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestSniff(t *testing.T) {
	mime, err := Sniff(pngBytes(t, 2, 2, color.White))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	_, err = Sniff([]byte("just some notes about the logo"))
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = Sniff([]byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"))
	require.ErrorIs(t, err, ErrNotImage)
	assert.Contains(t, err.Error(), "application/pdf")
}

func TestDecode(t *testing.T) {
	img, mime, err := Decode(bytes.NewReader(pngBytes(t, 4, 2, color.NRGBA{R: 255, A: 255})), 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(3, 1))
}

func TestDecodeRejects(t *testing.T) {
	_, _, err := Decode(strings.NewReader("hello"), 0)
	assert.ErrorIs(t, err, ErrNotImage)

	data := pngBytes(t, 16, 16, color.White)
	_, _, err = Decode(bytes.NewReader(data), int64(len(data)-1))
	assert.ErrorIs(t, err, ErrTooLarge)

	// Valid header, truncated body.
	_, _, err = Decode(bytes.NewReader(data[:40]), 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotImage)
}

func TestDirSourcePath(t *testing.T) {
	root := t.TempDir()
	d := DirSource{Root: root}

	p, err := d.Path("logos/a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "logos", "a.png"), p)

	_, err = d.Path("../secret.png")
	assert.ErrorIs(t, err, ErrOutsideRoot)
	_, err = d.Path("logos/../../secret.png")
	assert.ErrorIs(t, err, ErrOutsideRoot)
	_, err = d.Path(filepath.Join(root, "inside.png"))
	assert.NoError(t, err)
}

func TestLoadAsyncApply(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "logo.png", pngBytes(t, 8, 4, color.White))

	store := layer.NewStore()
	first := store.AddLayer()
	id := store.AddLayer()
	store.SetTransform(id, transform.Patch{Scale: ptr(2.0)})

	l := NewLoader(DirSource{Root: root}, 0)
	res := <-l.LoadAsync(context.Background(), id, "logo.png")
	require.NoError(t, res.Err)
	require.NoError(t, l.Apply(store, res))

	got, ok := store.Layer(id)
	require.True(t, ok)
	assert.True(t, got.HasImage())
	assert.Equal(t, "logo.png", got.Name)
	assert.Equal(t, "logo.png", got.Source)
	assert.Equal(t, transform.Identity(), got.Transform)
	assert.True(t, got.Active)

	other, _ := store.Layer(first)
	assert.False(t, other.Active)
}

func TestApplyAfterDelete(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "logo.png", pngBytes(t, 2, 2, color.White))

	store := layer.NewStore()
	id := store.AddLayer()
	l := NewLoader(DirSource{Root: root}, 0)
	ch := l.LoadAsync(context.Background(), id, "logo.png")
	store.DeleteLayer(id)

	assert.NoError(t, l.Apply(store, <-ch))
	assert.Zero(t, store.Len())
}

func TestApplyFailureLeavesLayer(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", []byte("not an image at all"))

	store := layer.NewStore()
	id := store.AddLayer()
	before := store.Version()

	l := NewLoader(DirSource{Root: root}, 0)
	err := l.Load(context.Background(), store, id, "notes.txt")
	assert.ErrorIs(t, err, ErrNotImage)

	got, _ := store.Layer(id)
	assert.False(t, got.HasImage())
	assert.Equal(t, "Layer 1", got.Name)
	assert.Equal(t, before, store.Version())
}

func TestLoadAll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.png", pngBytes(t, 2, 2, color.White))
	writeFile(t, root, "b.png", pngBytes(t, 3, 3, color.Black))

	store := layer.NewStore()
	a, b := store.AddLayer(), store.AddLayer()
	l := NewLoader(DirSource{Root: root}, 0)
	require.NoError(t, l.LoadAll(context.Background(), store, []Request{{a, "a.png"}, {b, "b.png"}}, 1))

	la, _ := store.Layer(a)
	lb, _ := store.Layer(b)
	assert.Equal(t, "a.png", la.Name)
	assert.Equal(t, "b.png", lb.Name)
	assert.True(t, lb.Active)

	err := l.LoadAll(context.Background(), store, []Request{{a, "missing.png"}}, 2)
	assert.Error(t, err)
}

func TestLoadAllAppliesGoodImagesDespiteFailures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "good.png", pngBytes(t, 2, 2, color.White))
	writeFile(t, root, "bad.png", []byte("plain text, no pixels"))
	writeFile(t, root, "late.png", pngBytes(t, 4, 4, color.Black))

	store := layer.NewStore()
	a, b, c := store.AddLayer(), store.AddLayer(), store.AddLayer()
	l := NewLoader(DirSource{Root: root}, 0)
	err := l.LoadAll(context.Background(), store,
		[]Request{{a, "good.png"}, {b, "bad.png"}, {c, "late.png"}}, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotImage)
	assert.Contains(t, err.Error(), "bad.png")

	la, _ := store.Layer(a)
	lb, _ := store.Layer(b)
	lc, _ := store.Layer(c)
	assert.True(t, la.HasImage())
	assert.False(t, lb.HasImage())
	assert.Equal(t, "Layer 2", lb.Name)
	assert.True(t, lc.HasImage())
	assert.True(t, lc.Active, "last successful image in request order is active")
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
	keys    []string
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	key := aws.StringValue(in.Key)
	f.keys = append(f.keys, aws.StringValue(in.Bucket)+"/"+key)
	data, ok := f.objects[key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Source(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{
		"designs/logo.png": pngBytes(t, 5, 5, color.White),
	}}
	src := NewS3SourceWithClient(fake, "assets", "/designs/")
	assert.Equal(t, "designs/logo.png", src.Key("/logo.png"))

	store := layer.NewStore()
	id := store.AddLayer()
	l := NewLoader(src, 0)
	require.NoError(t, l.Load(context.Background(), store, id, "logo.png"))
	assert.Equal(t, []string{"assets/designs/logo.png"}, fake.keys)

	got, _ := store.Layer(id)
	assert.Equal(t, 5, got.Image.Bounds().Dx())

	err := l.Load(context.Background(), store, id, "gone.png")
	var aerr awserr.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, s3.ErrCodeNoSuchKey, aerr.Code())
}

func TestThumbnail(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	th := Thumbnail(img, 50)
	assert.Equal(t, 50, th.Bounds().Dx())
	assert.Equal(t, 25, th.Bounds().Dy())

	assert.True(t, Thumbnail(nil, 50).Bounds().Empty())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "logo.png", DisplayName("a/b/logo.png"))
	assert.Equal(t, "logo.png", DisplayName(`c:\art\logo.png`))
	assert.Equal(t, "", DisplayName(""))
}

func ptr[T any](v T) *T { return &v }
