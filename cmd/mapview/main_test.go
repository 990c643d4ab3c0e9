package main

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/joeblew999/plat-map/internal/mapstate"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestShortLinkCmd(t *testing.T) {
	out, err := run(t, shortLinkCmd(), "encode", "-0.09", "51.505", "15")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "euu4qpaz--" {
		t.Errorf("encode = %q, want euu4qpaz--", out)
	}

	out, err = run(t, shortLinkCmd(), "decode", "euu4qpaz--")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "hash:      #map=15/51.50499/-0.09001") {
		t.Errorf("decode output:\n%s", out)
	}

	// Southern and western hemispheres start with a minus sign.
	out, err = run(t, shortLinkCmd(), "encode", "-43.2", "-22.9", "12")
	if err != nil {
		t.Fatal(err)
	}
	code := strings.TrimSpace(out)
	out, err = run(t, shortLinkCmd(), "decode", code)
	if err != nil {
		t.Fatal(err)
	}
	_, hash, _ := strings.Cut(out, "hash:")
	s, ok := mapstate.Decode(strings.TrimSpace(strings.SplitN(hash, "\n", 2)[0]))
	if !ok || s.Zoom != 12 || math.Abs(s.Lon+43.2) > 0.001 || math.Abs(s.Lat+22.9) > 0.001 {
		t.Errorf("decode %s output:\n%s", code, out)
	}

	if _, err := run(t, shortLinkCmd(), "encode", "0", "95", "3"); err == nil {
		t.Error("expected error for latitude out of range")
	}
}

func TestHashCmd(t *testing.T) {
	out, err := run(t, hashCmd(), "https://example.org/#map=12/48.8566/2.3522&layers=C")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"zoom:      12", "layers:    C", "shortlink: /go/"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, hashCmd(), "#map=nope"); err == nil {
		t.Error("expected error for invalid fragment")
	}
}
