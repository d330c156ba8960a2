package setup

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mcdev12/trialclock/go/internal/segment"
	"github.com/rs/zerolog"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func TestBuild_DefaultPlan(t *testing.T) {
	reg, err := DefaultPlan().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if reg.PartyCount() != 1 || reg.Len(segment.PartyLeft) != 4 {
		t.Fatalf("registry: parties=%d len=%d", reg.PartyCount(), reg.Len(segment.PartyLeft))
	}
	cross, _, _ := reg.Find(segment.PartyLeft, 3)
	direct, ok := reg.Linked(cross)
	if !ok || direct.Name != "Direct Examination" || direct.Nominal != 1500 {
		t.Errorf("cross link resolved to %+v", direct)
	}
	if cross.Remaining != nil {
		t.Error("segments must start unloaded")
	}
}

func TestBuild_NonAdvancedStripsLinks(t *testing.T) {
	p := DefaultPlan()
	p.Advanced = false
	reg, err := p.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, seg := range reg.List(segment.PartyLeft) {
		if seg.LinkedID != nil {
			t.Errorf("segment %d kept link in basic mode", seg.ID)
		}
	}
}

func TestBuild_RepairsMalformedBlocks(t *testing.T) {
	p := &Plan{
		Advanced: true,
		Blocks: []Block{
			{ID: 1, Name: "Bad time", Time: "soon"},
			{ID: 2, Name: "Dangling", Time: "02:00", Linked: linkTo(9)},
		},
	}
	reg, err := p.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	bad, _, _ := reg.Find(segment.PartyLeft, 1)
	if bad.Nominal != segment.DefaultDuration || bad.NominalText != "01:00" {
		t.Errorf("bad time became %d (%s)", bad.Nominal, bad.NominalText)
	}
	dangling, _, _ := reg.Find(segment.PartyLeft, 2)
	if dangling.LinkedID != nil {
		t.Error("dangling link should be dropped")
	}
	if p.LeftTeam != DefaultLeftTeam || p.RightTeam != DefaultRightTeam {
		t.Errorf("team defaults: %q %q", p.LeftTeam, p.RightTeam)
	}
}

func TestBuild_TwoPartyDuplicatesLists(t *testing.T) {
	p := DefaultPlan()
	p.Parties = 2
	reg, err := p.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	left, _, _ := reg.Find(segment.PartyLeft, 2)
	right, _, _ := reg.Find(segment.PartyRight, 2)
	if left == right {
		t.Fatal("parties must not share segment values")
	}
	linked, ok := reg.Linked(left)
	if !ok || linked.Party != segment.PartyRight || linked.ID != 3 {
		t.Errorf("left direct links to %+v", linked)
	}
	if reg.PartyName(segment.PartyRight) != "Defense" {
		t.Errorf("right name = %q", reg.PartyName(segment.PartyRight))
	}
}

func TestBuild_StructuralErrors(t *testing.T) {
	if _, err := (&Plan{}).Build(); !errors.Is(err, ErrNoBlocks) {
		t.Errorf("empty plan: %v", err)
	}
	dup := &Plan{Blocks: []Block{{ID: 1, Time: "01:00"}, {ID: 1, Time: "01:00"}}}
	if _, err := dup.Build(); !errors.Is(err, ErrDuplicateBlock) {
		t.Errorf("duplicate ids: %v", err)
	}
	three := DefaultPlan()
	three.Parties = 3
	if _, err := three.Build(); !errors.Is(err, ErrPartyCount) {
		t.Errorf("three parties: %v", err)
	}
}

func TestOptions_PlanOverridesDefault(t *testing.T) {
	p := DefaultPlan()
	if opts := p.Options(true); !opts.AllowOvertime || opts.PartyCount != 1 {
		t.Errorf("default options = %+v", opts)
	}
	off := false
	p.AllowOvertime = &off
	if p.Options(true).AllowOvertime {
		t.Error("plan choice should win over default")
	}
}

func TestQuery_HandOffRoundTrip(t *testing.T) {
	p := DefaultPlan()
	p.LeftTeam = "Smith"
	values, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Simulate the browser: the query string is parsed once.
	parsed, err := url.ParseQuery(values.Encode())
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	got, err := FromQuery(parsed)
	if err != nil {
		t.Fatalf("FromQuery: %v", err)
	}
	if got.LeftTeam != "Smith" || !got.Advanced || len(got.Blocks) != 4 {
		t.Fatalf("decoded plan = %+v", got)
	}
	if got.Blocks[2].Linked == nil || *got.Blocks[2].Linked != 2 {
		t.Errorf("cross link lost: %+v", got.Blocks[2])
	}
}

func TestQuery_AcceptsPlainJSONBlocks(t *testing.T) {
	values := url.Values{}
	values.Set("blocks", `[{"id":1,"name":"Opening","time":"03:00","linked":null}]`)
	p, err := FromQuery(values)
	if err != nil {
		t.Fatalf("FromQuery: %v", err)
	}
	if p.Advanced {
		t.Error("advanced should default to false")
	}
	if len(p.Blocks) != 1 || p.Blocks[0].Time != "03:00" {
		t.Errorf("blocks = %+v", p.Blocks)
	}

	if _, err := FromQuery(url.Values{}); !errors.Is(err, ErrNoBlocks) {
		t.Errorf("missing blocks: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	doc := `
left_team: Prosecution
right_team: Defense
advanced: true
parties: 2
allow_overtime: true
blocks:
  - id: 1
    name: Opening
    time: "04:00"
  - id: 2
    name: Direct
    time: "20:00"
    linked: 3
  - id: 3
    name: Cross
    time: "15:00"
    linked: 2
`
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if p.LeftTeam != "Prosecution" || p.PartyCount() != 2 || p.AllowOvertime == nil || !*p.AllowOvertime {
		t.Errorf("plan = %+v", p)
	}
	if p.Blocks[1].Linked == nil || *p.Blocks[1].Linked != 3 {
		t.Errorf("direct link = %v", p.Blocks[1].Linked)
	}
}

func TestDecodeJSON_RejectsGarbage(t *testing.T) {
	if _, err := DecodeJSON(strings.NewReader("{not json")); err == nil {
		t.Error("expected decode error")
	}
}
