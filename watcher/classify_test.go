package watcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/revel/devproxy/model"
	"github.com/revel/devproxy/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var styles = []string{".css", ".less"}

func TestClassifyStyleOnly(t *testing.T) {
	ev := watcher.Classify([]model.ChangeEvent{
		{Path: "static/css/site.css", Kind: model.Modify},
		{Path: "static/css/site.LESS", Kind: model.Modify},
		{Path: "static/css/site.css", Kind: model.Modify},
	}, styles)

	assert.True(t, ev.LiveCSS)
	assert.Equal(t, []string{"static/css/site.css", "static/css/site.LESS"}, ev.Paths)
}

func TestClassifyFullReload(t *testing.T) {
	for _, name := range []string{"templates/home.html", "static/js/app.js", "fec/views.py"} {
		ev := watcher.Classify([]model.ChangeEvent{{Path: name, Kind: model.Modify}}, styles)
		assert.False(t, ev.LiveCSS, name)
	}

	mixed := watcher.Classify([]model.ChangeEvent{
		{Path: "static/css/site.css"},
		{Path: "fec/views.py"},
	}, styles)
	assert.False(t, mixed.LiveCSS)
	assert.Len(t, mixed.Paths, 2)
}

func TestClassifyDefaultStyles(t *testing.T) {
	exts := model.DefaultLaunchConfig("/project").StyleExtensions

	css := watcher.Classify([]model.ChangeEvent{{Path: "static/css/site.css", Kind: model.Modify}}, exts)
	assert.True(t, css.LiveCSS)

	// Compiled stylesheets only change on a full reload.
	for _, name := range []string{"static/less/base.less", "static/scss/base.scss"} {
		ev := watcher.Classify([]model.ChangeEvent{{Path: name, Kind: model.Modify}}, exts)
		assert.False(t, ev.LiveCSS, name)
	}
}

func TestClassifyEmpty(t *testing.T) {
	assert.False(t, watcher.Classify(nil, styles).LiveCSS)
}

func TestCoalesceBatchesBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan model.ChangeEvent)
	out := watcher.Coalesce(ctx, in, 50*time.Millisecond, styles)

	in <- model.ChangeEvent{Path: "a.css"}
	in <- model.ChangeEvent{Path: "b.css"}

	select {
	case ev := <-out:
		assert.True(t, ev.LiveCSS)
		assert.Equal(t, []string{"a.css", "b.css"}, ev.Paths)
	case <-time.After(2 * time.Second):
		t.Fatal("no reload event")
	}

	in <- model.ChangeEvent{Path: "views.py"}
	close(in)
	ev, ok := <-out
	require.True(t, ok)
	assert.False(t, ev.LiveCSS)

	_, ok = <-out
	assert.False(t, ok, "output closes after input")
}

func TestCoalesceWithoutDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan model.ChangeEvent, 1)
	out := watcher.Coalesce(ctx, in, 0, styles)

	in <- model.ChangeEvent{Path: "home.html"}
	ev := <-out
	assert.Equal(t, []string{"home.html"}, ev.Paths)

	cancel()
	_, ok := <-out
	assert.False(t, ok)
}
