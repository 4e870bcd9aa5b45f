package domain

import "testing"

func TestClampProgress(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 42: 42, 100: 100, 140: 100}
	for in, want := range cases {
		if got := ClampProgress(in); got != want {
			t.Fatalf("ClampProgress(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRemoteStatusTerminal(t *testing.T) {
	for _, s := range []RemoteStatus{RemoteStatusCompleted, RemoteStatusFailed} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []RemoteStatus{RemoteStatusPending, RemoteStatusProcessing, "", "queued"} {
		if s.Terminal() {
			t.Fatalf("%q should not be terminal", s)
		}
	}
}

func TestJobCloneDoesNotAlias(t *testing.T) {
	job := &Job{ID: "j1", Result: &ResultPayload{Images: []string{"a"}, Panels: []string{"p"}, URL: "u"}}
	clone := job.Clone()
	clone.Result.Images[0] = "changed"
	clone.Result.Panels = append(clone.Result.Panels, "q")
	clone.ID = "j2"

	if job.ID != "j1" || job.Result.Images[0] != "a" || len(job.Result.Panels) != 1 {
		t.Fatalf("original mutated: %#v", job.Result)
	}
	if (*Job)(nil).Clone() != nil {
		t.Fatalf("nil clone should be nil")
	}
}

func TestResultPayloadEmpty(t *testing.T) {
	var nilPayload *ResultPayload
	if !nilPayload.Empty() || !(&ResultPayload{}).Empty() {
		t.Fatalf("nil and zero payloads are empty")
	}
	if (&ResultPayload{URL: "u"}).Empty() {
		t.Fatalf("payload with url is not empty")
	}
}
