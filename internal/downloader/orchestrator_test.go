package downloader

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
	"e621dl/pkg/models"
	"e621dl/pkg/storage"
)

type fakeSender struct {
	calls  []string
	failOn map[string]error
}

func (f *fakeSender) DownloadImage(ctx context.Context, url string, expectedSize int64) ([]byte, error) {
	f.calls = append(f.calls, url)
	if err := f.failOn[url]; err != nil {
		return nil, err
	}
	return []byte("bytes of " + url), nil
}

type progressEvent struct {
	kind  string
	label string
}

type recordingProgress struct {
	label  string
	total  int
	events []progressEvent
}

func (p *recordingProgress) Describe(label string) {
	p.events = append(p.events, progressEvent{"describe", label})
}

func (p *recordingProgress) Increment() {
	p.events = append(p.events, progressEvent{kind: "inc"})
}

func (p *recordingProgress) Finish() {
	p.events = append(p.events, progressEvent{kind: "finish"})
}

func (p *recordingProgress) count(kind string) int {
	n := 0
	for _, e := range p.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

type harness struct {
	fs     afero.Fs
	sender *fakeSender
	bars   []*recordingProgress
	orch   *Orchestrator
	log    *logger.TestLogger
}

func newHarness(t *testing.T, createDirs bool) *harness {
	t.Helper()
	h := &harness{
		fs:     afero.NewMemMapFs(),
		sender: &fakeSender{failOn: map[string]error{}},
		log:    logger.NewTestLogger(),
	}
	h.orch = New(h.sender, storage.NewManager(h.fs), Options{
		DownloadDirectory: "downloads/",
		CreateDirectories: createDirs,
		Logger:            h.log,
		Progress: func(label string, total int) Progress {
			p := &recordingProgress{label: label, total: total}
			h.bars = append(h.bars, p)
			return p
		},
	})
	return h
}

func (h *harness) read(t *testing.T, path string) string {
	t.Helper()
	data, err := afero.ReadFile(h.fs, path)
	require.NoError(t, err)
	return string(data)
}

func post(name string) models.GrabbedPost {
	return models.GrabbedPost{FileName: name, FileURL: "https://static/" + name, FileSize: 10}
}

func TestSanitizeName(t *testing.T) {
	in := `a?b:c*d<e>f"g|h/i`
	got := SanitizeName(in)

	assert.Equal(t, "a_b_c_d_e_f_g_h/i", got)
	assert.False(t, strings.ContainsAny(got, `?:*<>"|`))
}

func TestDownloadSetLayout(t *testing.T) {
	h := newHarness(t, true)

	sets := []models.PostSet{
		{SetName: "fox:art", Posts: []models.GrabbedPost{post("a.jpg")}},
		{SetName: "fox", Category: "safe", Posts: []models.GrabbedPost{post("b.png")}},
	}
	require.NoError(t, h.orch.DownloadAll(context.Background(), sets, models.NewSingleSet()))

	assert.Equal(t, "bytes of https://static/a.jpg", h.read(t, filepath.Join("downloads", "fox_art", "a.jpg")))
	assert.Equal(t, "bytes of https://static/b.png", h.read(t, filepath.Join("downloads", "safe", "fox", "b.png")))

	assert.Equal(t, "fox:art", sets[0].SetName, "set name must not be mutated")
	assert.Equal(t, "a.jpg", sets[0].Posts[0].FileName)
}

func TestDownloadSetOldestFirstWithoutReordering(t *testing.T) {
	h := newHarness(t, true)
	set := models.PostSet{SetName: "wolf", Posts: []models.GrabbedPost{post("3.png"), post("2.png"), post("1.png")}}

	require.NoError(t, h.orch.DownloadSet(context.Background(), set))

	assert.Equal(t, []string{"https://static/1.png", "https://static/2.png", "https://static/3.png"}, h.sender.calls)
	assert.Equal(t, "3.png", set.Posts[0].FileName)
	assert.Equal(t, "1.png", set.Posts[2].FileName)
}

func TestExistingFileIsSkippedAndCounted(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.fs.MkdirAll(filepath.Join("downloads", "wolf"), 0755))
	require.NoError(t, afero.WriteFile(h.fs, filepath.Join("downloads", "wolf", "a.png"), []byte("old"), 0644))

	set := models.PostSet{SetName: "wolf", Posts: []models.GrabbedPost{post("b.png"), post("a.png")}}
	require.NoError(t, h.orch.DownloadSet(context.Background(), set))

	assert.Equal(t, []string{"https://static/b.png"}, h.sender.calls)
	assert.Equal(t, "old", h.read(t, filepath.Join("downloads", "wolf", "a.png")))

	require.Len(t, h.bars, 1)
	bar := h.bars[0]
	assert.Equal(t, "Downloading: wolf", bar.label)
	assert.Equal(t, 2, bar.total)
	assert.Equal(t, 2, bar.count("inc"))
	assert.Equal(t, 1, bar.count("finish"))
	assert.Contains(t, bar.events, progressEvent{"describe", "Duplicate found: skipping..."})

	stats := h.orch.Stats()
	assert.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, 1, stats.Skipped)
	assert.EqualValues(t, len("bytes of https://static/b.png"), stats.Bytes)
}

func TestSecondRunFetchesNothing(t *testing.T) {
	h := newHarness(t, true)
	sets := []models.PostSet{
		{SetName: "wolf", Posts: []models.GrabbedPost{post("1.png"), post("2.png")}},
		{SetName: "Comic", Category: "pools", Posts: []models.GrabbedPost{post("3.png")}},
	}
	single := models.PostSet{SetName: models.SingleSetName, Posts: []models.GrabbedPost{post("4.png")}}

	require.NoError(t, h.orch.DownloadAll(context.Background(), sets, single))
	assert.Len(t, h.sender.calls, 4)
	assert.Equal(t, "bytes of https://static/4.png", h.read(t, filepath.Join("downloads", "single", "4.png")))

	h.sender.calls = nil
	require.NoError(t, h.orch.DownloadAll(context.Background(), sets, single))
	assert.Empty(t, h.sender.calls)
}

func TestFetchFailureAbortsSetAndSession(t *testing.T) {
	h := newHarness(t, true)
	h.sender.failOn["https://static/2.png"] = errs.New(errs.ErrorTypeNetwork, "connection reset")

	sets := []models.PostSet{
		{SetName: "first", Posts: []models.GrabbedPost{post("ok.png")}},
		{SetName: "second", Posts: []models.GrabbedPost{post("3.png"), post("2.png"), post("1.png")}},
		{SetName: "third", Posts: []models.GrabbedPost{post("never.png")}},
	}
	err := h.orch.DownloadAll(context.Background(), sets, models.NewSingleSet())

	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeFetch))
	assert.Equal(t, []string{"https://static/ok.png", "https://static/1.png", "https://static/2.png"}, h.sender.calls)

	exists, _ := afero.Exists(h.fs, filepath.Join("downloads", "first", "ok.png"))
	assert.True(t, exists, "completed sets stay on disk")
	exists, _ = afero.Exists(h.fs, filepath.Join("downloads", "second", "3.png"))
	assert.False(t, exists)

	require.Len(t, h.bars, 2)
	assert.Equal(t, 1, h.bars[1].count("finish"), "progress is finished on failure")
	assert.Equal(t, 1, h.bars[1].count("inc"))
	assert.True(t, h.log.HasMessage("ERROR", "Download failed"))
}

func TestWriteFailureIsIOError(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll(filepath.Join("downloads", "wolf"), 0755))

	sender := &fakeSender{}
	orch := New(sender, storage.NewManager(afero.NewReadOnlyFs(base)), Options{
		DownloadDirectory: "downloads",
		CreateDirectories: true,
	})

	err := orch.DownloadSet(context.Background(), models.PostSet{SetName: "wolf", Posts: []models.GrabbedPost{post("a.png"), post("b.png")}})

	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeIO))
	assert.True(t, errors.Is(err, errs.ErrWriteFailed))
	assert.Len(t, sender.calls, 1, "the set stops at the first write failure")
}

func TestCreateDirectoriesDisabledFlattensLayout(t *testing.T) {
	h := newHarness(t, false)
	sets := []models.PostSet{
		{SetName: "wolf", Posts: []models.GrabbedPost{post("a.png")}},
		{SetName: "Comic", Category: "pools", Posts: []models.GrabbedPost{post("b.png")}},
	}

	require.NoError(t, h.orch.DownloadAll(context.Background(), sets, models.NewSingleSet()))

	h.read(t, filepath.Join("downloads", "a.png"))
	h.read(t, filepath.Join("downloads", "pools", "b.png"))
}

func TestEmptySetFinishesProgressWithoutDirectory(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.orch.DownloadAll(context.Background(), nil, models.NewSingleSet()))

	require.Len(t, h.bars, 1)
	assert.Equal(t, "Downloading: single", h.bars[0].label)
	assert.Equal(t, 1, h.bars[0].count("finish"))

	exists, _ := afero.DirExists(h.fs, filepath.Join("downloads", "single"))
	assert.False(t, exists)
}

func TestNilProgressFactory(t *testing.T) {
	fs := afero.NewMemMapFs()
	orch := New(&fakeSender{}, storage.NewManager(fs), Options{DownloadDirectory: "d", CreateDirectories: true})

	require.NoError(t, orch.DownloadSet(context.Background(), models.PostSet{SetName: "x", Posts: []models.GrabbedPost{post("1.png")}}))
	assert.Equal(t, 1, orch.Stats().Downloaded)
	assert.Equal(t, 1, orch.Stats().Sets)
}

func TestSetEscapingDownloadDirectoryIsRefused(t *testing.T) {
	for _, set := range []models.PostSet{
		{SetName: "../etc", Posts: []models.GrabbedPost{post("a.png")}},
		{SetName: "../../etc", Category: "pools", Posts: []models.GrabbedPost{post("a.png")}},
		{SetName: "x", Category: "..", Posts: []models.GrabbedPost{post("a.png")}},
	} {
		t.Run(set.SetName+"/"+set.Category, func(t *testing.T) {
			h := newHarness(t, true)

			err := h.orch.DownloadSet(context.Background(), set)

			require.Error(t, err)
			assert.True(t, errs.IsType(err, errs.ErrorTypeIO))
			assert.ErrorIs(t, err, ErrOutsideDownloadDirectory)
			assert.Empty(t, h.sender.calls)
			exists, _ := afero.Exists(h.fs, "etc")
			assert.False(t, exists)
		})
	}
}

func TestFileNameEscapingSetDirectoryIsRefused(t *testing.T) {
	h := newHarness(t, true)

	err := h.orch.DownloadSet(context.Background(), models.PostSet{SetName: "wolf", Posts: []models.GrabbedPost{post("../../a.png")}})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutsideDownloadDirectory)
	assert.ErrorIs(t, err, errs.ErrWriteFailed)
	assert.Empty(t, h.sender.calls)
}

func TestSlashInSetNameStaysInsideDownloadDirectory(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.orch.DownloadSet(context.Background(), models.PostSet{
		SetName:  "AC/DC",
		Category: "pools",
		Posts:    []models.GrabbedPost{post("a.png")},
	}))

	h.read(t, filepath.Join("downloads", "pools", "AC", "DC", "a.png"))
}

func TestProgressShowsCurrentFile(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.orch.DownloadSet(context.Background(), models.PostSet{
		SetName: "wolf",
		Posts:   []models.GrabbedPost{post("2.png"), post("1.png")},
	}))

	require.Len(t, h.bars, 1)
	assert.Equal(t, []progressEvent{
		{"describe", "Downloading: wolf 1.png"},
		{kind: "inc"},
		{"describe", "Downloading: wolf 2.png"},
		{kind: "inc"},
		{kind: "finish"},
	}, h.bars[0].events)
}
