package setup

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query parameter names of the setup-to-run hand-off.
const (
	paramLeftTeam  = "leftTeam"
	paramRightTeam = "rightTeam"
	paramAdvanced  = "advanced"
	paramParties   = "parties"
	paramOvertime  = "overtime"
	paramBlocks    = "blocks"
)

// FromQuery decodes a plan from the run view's query string. The blocks value
// is JSON that the editor percent-encodes once more before building the query,
// so it may arrive still encoded.
func FromQuery(values url.Values) (*Plan, error) {
	p := &Plan{
		LeftTeam:  values.Get(paramLeftTeam),
		RightTeam: values.Get(paramRightTeam),
		Advanced:  values.Get(paramAdvanced) == "true",
	}

	if v := values.Get(paramParties); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid parties %q: %w", v, err)
		}
		p.Parties = n
	}
	if v := values.Get(paramOvertime); v != "" {
		overtime := v == "true"
		p.AllowOvertime = &overtime
	}

	raw := strings.TrimSpace(values.Get(paramBlocks))
	if raw == "" {
		return nil, ErrNoBlocks
	}
	if !strings.HasPrefix(raw, "[") {
		unescaped, err := url.PathUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to unescape blocks: %w", err)
		}
		raw = unescaped
	}
	if err := json.Unmarshal([]byte(raw), &p.Blocks); err != nil {
		return nil, fmt.Errorf("failed to decode blocks: %w", err)
	}
	return p, nil
}

// Encode produces the query string the run view accepts.
func (p *Plan) Encode() (url.Values, error) {
	blocks, err := json.Marshal(p.Blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blocks: %w", err)
	}

	values := url.Values{}
	values.Set(paramLeftTeam, p.LeftTeam)
	values.Set(paramRightTeam, p.RightTeam)
	values.Set(paramAdvanced, strconv.FormatBool(p.Advanced))
	values.Set(paramBlocks, url.PathEscape(string(blocks)))
	if p.Parties != 0 {
		values.Set(paramParties, strconv.Itoa(p.Parties))
	}
	if p.AllowOvertime != nil {
		values.Set(paramOvertime, strconv.FormatBool(*p.AllowOvertime))
	}
	return values, nil
}
