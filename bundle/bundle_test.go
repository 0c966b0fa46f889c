package bundle

import (
	"errors"
	"strings"
	"testing"
)

func TestJoin_Format(t *testing.T) {
	payload, err := Join([]File{
		{Name: "items.cfg", Text: "[item-name]\nfoo=Foo\n"},
		{Name: "entities.cfg", Text: "[entity-name]\npump=Pump\n\n\n"},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := "; ===FILE: items.cfg ===\n" +
		"[item-name]\nfoo=Foo\n" +
		"; ===END FILE: items.cfg ===\n" +
		"\n" +
		"; ===FILE: entities.cfg ===\n" +
		"[entity-name]\npump=Pump\n" +
		"; ===END FILE: entities.cfg ===\n"
	if payload != want {
		t.Errorf("payload mismatch:\ngot  %q\nwant %q", payload, want)
	}
}

func TestJoin_DuplicateName(t *testing.T) {
	_, err := Join([]File{{Name: "a.cfg"}, {Name: "a.cfg"}})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("err = %v, want ErrDuplicateName", err)
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	in := []File{
		{Name: "a.cfg", Text: "[s]\nk1=v1\n"},
		{Name: "b.cfg", Text: "[t]\nk2=v2\nk3=v3\n"},
	}
	payload, err := Join(in)
	if err != nil {
		t.Fatal(err)
	}

	out := Split(payload)
	if len(out) != len(in) {
		t.Fatalf("got %d files, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Name != in[i].Name {
			t.Errorf("file %d name = %q, want %q", i, out[i].Name, in[i].Name)
		}
		if out[i].Text != in[i].Text {
			t.Errorf("file %d text = %q, want %q", i, out[i].Text, in[i].Text)
		}
	}
}

func TestSplit_DiscardsStrayCommentary(t *testing.T) {
	payload := "Here is your translation:\n" +
		"; ===FILE: a.cfg ===\n[s]\nk=v\n; ===END FILE: a.cfg ===\n" +
		"Hope that helps!\n"
	out := Split(payload)
	if len(out) != 1 {
		t.Fatalf("got %d files, want 1", len(out))
	}
	if out[0].Text != "[s]\nk=v\n" {
		t.Errorf("text = %q", out[0].Text)
	}
}

func TestSplit_UnclosedBeginRecovered(t *testing.T) {
	payload := "; ===FILE: a.cfg ===\n[s]\nk=v\n"
	out := Split(payload)
	if len(out) != 1 || out[0].Name != "a.cfg" {
		t.Fatalf("got %v", out)
	}
	if out[0].Text != "[s]\nk=v\n" {
		t.Errorf("text = %q", out[0].Text)
	}
}

func TestSplit_NewBeginClosesPrevious(t *testing.T) {
	payload := "; ===FILE: a.cfg ===\nk=v\n; ===FILE: b.cfg ===\nm=w\n; ===END FILE: b.cfg ===\n"
	out := Split(payload)
	if len(out) != 2 {
		t.Fatalf("got %d files, want 2", len(out))
	}
	if out[0].Name != "a.cfg" || out[0].Text != "k=v\n" {
		t.Errorf("file 0 = %+v", out[0])
	}
}

func TestNames(t *testing.T) {
	payload, _ := Join([]File{{Name: "x.cfg"}, {Name: "y.cfg"}})
	names := Names(payload)
	if len(names) != 2 || names[0] != "x.cfg" || names[1] != "y.cfg" {
		t.Errorf("names = %v", names)
	}
}

func TestMissingMarkers(t *testing.T) {
	payload, _ := Join([]File{{Name: "items.cfg", Text: "a=1\n"}})

	if !HasMarkers(payload, []string{"items.cfg"}) {
		t.Error("intact payload reported as damaged")
	}

	damaged := strings.Replace(payload, "; ===END FILE: items.cfg ===", "; === END OF FILE items.cfg ===", 1)
	missing := MissingMarkers(damaged, []string{"items.cfg"})
	if len(missing) != 1 || missing[0] != EndMarker("items.cfg") {
		t.Errorf("missing = %v", missing)
	}
}
