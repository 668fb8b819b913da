package ports

import (
	"context"
	"reflect"
	"testing"

	"cinemastream/internal/domain"
)

func TestPlaybackProviderInterface(t *testing.T) {
	typ := reflect.TypeOf((*PlaybackProvider)(nil)).Elem()

	assertMethod(t, typ, "MoviePlayback",
		[]reflect.Type{contextType(), reflect.TypeOf(0)},
		[]reflect.Type{reflect.TypeOf(domain.PlaybackInfo{}), errorType()})
	assertMethod(t, typ, "EpisodePlayback",
		[]reflect.Type{contextType(), reflect.TypeOf(0), reflect.TypeOf(0), reflect.TypeOf(0)},
		[]reflect.Type{reflect.TypeOf(domain.PlaybackInfo{}), errorType()})
}

func TestProberInterface(t *testing.T) {
	typ := reflect.TypeOf((*Prober)(nil)).Elem()
	assertMethod(t, typ, "Probe",
		[]reflect.Type{contextType(), reflect.TypeOf("")},
		[]reflect.Type{reflect.TypeOf(domain.ProbeResult{}), errorType()})
}

func TestSeriesLibraryInterface(t *testing.T) {
	typ := reflect.TypeOf((*SeriesLibrary)(nil)).Elem()
	assertMethod(t, typ, "SeriesByTMDB",
		[]reflect.Type{contextType(), reflect.TypeOf(0)},
		[]reflect.Type{reflect.TypeOf(SeriesEntry{}), errorType()})
	assertMethod(t, typ, "Episodes",
		[]reflect.Type{contextType(), reflect.TypeOf(0)},
		[]reflect.Type{reflect.TypeOf([]EpisodeEntry{}), errorType()})
	assertMethod(t, typ, "EpisodeFilePath",
		[]reflect.Type{contextType(), reflect.TypeOf(0)},
		[]reflect.Type{reflect.TypeOf(""), errorType()})
}

func assertMethod(t *testing.T, typ reflect.Type, name string, in, out []reflect.Type) {
	t.Helper()
	m, ok := typ.MethodByName(name)
	if !ok {
		t.Fatalf("%s missing method %s", typ, name)
	}
	if m.Type.NumIn() != len(in) {
		t.Fatalf("%s.%s: %d params, want %d", typ, name, m.Type.NumIn(), len(in))
	}
	for i, want := range in {
		if got := m.Type.In(i); got != want {
			t.Fatalf("%s.%s param %d = %s, want %s", typ, name, i, got, want)
		}
	}
	if m.Type.NumOut() != len(out) {
		t.Fatalf("%s.%s: %d results, want %d", typ, name, m.Type.NumOut(), len(out))
	}
	for i, want := range out {
		if got := m.Type.Out(i); got != want {
			t.Fatalf("%s.%s result %d = %s, want %s", typ, name, i, got, want)
		}
	}
}

func contextType() reflect.Type { return reflect.TypeOf((*context.Context)(nil)).Elem() }
func errorType() reflect.Type   { return reflect.TypeOf((*error)(nil)).Elem() }
