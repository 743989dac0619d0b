package wheels

import (
	"testing"

	"github.com/Masterminds/semver/v3"
)

func metaFixture() *projectMetadata {
	meta := &projectMetadata{}
	meta.Info.Version = "3.0.0"
	meta.Releases = map[string][]releaseFile{
		"1.0.0": {
			{Filename: "pkg-1.0.0-py3-none-any.whl", URL: "https://files/pkg-1.0.0-py3-none-any.whl"},
		},
		"2.5.0": {
			{Filename: "pkg-2.5.0.tar.gz", URL: "https://files/pkg-2.5.0.tar.gz"},
			{Filename: "pkg-2.5.0-py3-none-any.whl", URL: "https://files/pkg-2.5.0-py3-none-any.whl"},
		},
		"3.0.0": {
			{Filename: "pkg-3.0.0-cp312-cp312-linux_x86_64.whl", URL: "https://files/native.whl"},
		},
		"3.1.0rc1": {
			{Filename: "pkg-3.1.0rc1-py3-none-any.whl", URL: "https://files/rc.whl"},
		},
	}
	return meta
}

func TestSelectVersionPrefersLatestWithPureWheel(t *testing.T) {
	meta := metaFixture()
	meta.Info.Version = "2.5.0"

	version, wheel, err := selectVersion(meta, nil)
	if err != nil {
		t.Fatalf("selectVersion failed: %v", err)
	}
	if version != "2.5.0" {
		t.Errorf("expected 2.5.0, got %s", version)
	}
	if !IsPureWheel(wheel.Filename) {
		t.Errorf("expected a pure wheel, got %s", wheel.Filename)
	}
}

func TestSelectVersionFallsBackWhenLatestHasNoPureWheel(t *testing.T) {
	// Latest (3.0.0) ships only a native wheel; the scan must land on 2.5.0,
	// skipping the 3.1.0rc1 prerelease.
	version, _, err := selectVersion(metaFixture(), nil)
	if err != nil {
		t.Fatalf("selectVersion failed: %v", err)
	}
	if version != "2.5.0" {
		t.Errorf("expected fallback to 2.5.0, got %s", version)
	}
}

func TestSelectVersionHonorsConstraint(t *testing.T) {
	c, err := semver.NewConstraint("<2.0")
	if err != nil {
		t.Fatalf("bad constraint: %v", err)
	}
	version, _, err := selectVersion(metaFixture(), c)
	if err != nil {
		t.Fatalf("selectVersion failed: %v", err)
	}
	if version != "1.0.0" {
		t.Errorf("expected 1.0.0 under <2.0, got %s", version)
	}
}

func TestSelectVersionNoCandidate(t *testing.T) {
	c, err := semver.NewConstraint(">=4.0")
	if err != nil {
		t.Fatalf("bad constraint: %v", err)
	}
	if _, _, err := selectVersion(metaFixture(), c); err == nil {
		t.Fatal("expected error when nothing satisfies the constraint")
	}
}
