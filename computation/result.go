package computation

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/protocol"
)

// Outcome is the result of a successful Compute.
// Notifications are addressed to inbox routes rather than to the requester.
type Outcome struct {
	Response      *protocol.Response
	Notifications []*protocol.Mail
}

// Compute produces the result of c as seen by requester.
//
// The requester must be a participant and the quorum must be met for every
// kind. For averages, minima and maxima the first successful result locks the
// computation and is returned unchanged by every later call. Key matching never
// locks and always answers CHECK_INBOX, delivering its groups as notifications.
func Compute(c *Computation, requester crypto.PublicKey) (*Outcome, error) {
	if !IsParticipant(c, requester) {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, requester.Short())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen != nil {
		return &Outcome{Response: cloneResponse(c.frozen)}, nil
	}

	if !c.hasQuorum() {
		return nil, fmt.Errorf("%w: %d of %d contributors", ErrQuorumNotReached, c.submissions.Contributors(), c.quorum)
	}

	var (
		resp *protocol.Response
		err  error
	)
	switch c.kind {
	case protocol.Average:
		resp, err = c.average()
	case protocol.Minimum:
		resp, err = c.extremum(-1)
	case protocol.Maximum:
		resp, err = c.extremum(1)
	case protocol.KeyMatch:
		return c.keyMatch(requester)
	default:
		return nil, fmt.Errorf("%w: unknown computation kind %q", ErrInvalidRequest, c.kind)
	}
	if err != nil {
		return nil, err
	}

	resp.Commentary = c.commentary()
	c.locked = true
	c.frozen = resp
	return &Outcome{Response: cloneResponse(resp)}, nil
}

// decimalPattern accepts plain decimal numbers. The exponent is bounded so that
// parsing into an exact rational stays cheap.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d{1,3})?$`)

// ParseValue parses a submitted value as an exact decimal quantity.
func ParseValue(value string) (*big.Rat, bool) {
	value = strings.TrimSpace(value)
	if !decimalPattern.MatchString(value) {
		return nil, false
	}
	r, ok := new(big.Rat).SetString(value)
	return r, ok
}

type parsedSubmission struct {
	sub   *Submission
	value *big.Rat
}

// parsedLatest returns the parsable latest submissions in log order.
// Unparsable values are excluded rather than failing the computation.
func (c *Computation) parsedLatest() []parsedSubmission {
	latest := c.submissions.LatestInOrder()
	out := make([]parsedSubmission, 0, len(latest))
	for _, sub := range latest {
		if v, ok := ParseValue(sub.Value); ok {
			out = append(out, parsedSubmission{sub: sub, value: v})
		}
	}
	return out
}

func (c *Computation) average() (*protocol.Response, error) {
	values := c.parsedLatest()
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no numeric values in %s", ErrNoResults, c.name)
	}

	sum := new(big.Rat)
	for _, v := range values {
		sum.Add(sum, v.value)
	}
	mean := sum.Quo(sum, new(big.Rat).SetInt64(int64(len(values))))

	return &protocol.Response{
		Code:    protocol.Success,
		Message: FormatDecimal(mean),
	}, nil
}

// extremum selects the minimum (sign -1) or maximum (sign 1) latest value.
// Only a strictly better value replaces the current winner, so on ties the
// earliest submission wins. The winner's identity is returned, never its value.
func (c *Computation) extremum(sign int) (*protocol.Response, error) {
	values := c.parsedLatest()
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no numeric values in %s", ErrNoResults, c.name)
	}

	winner := values[0]
	for _, v := range values[1:] {
		if v.value.Cmp(winner.value)*sign > 0 {
			winner = v
		}
	}

	return &protocol.Response{
		Code:    protocol.Success,
		Message: winner.sub.Contributor.String(),
	}, nil
}

func (c *Computation) keyMatch(requester crypto.PublicKey) (*Outcome, error) {
	all := c.submissions.All()

	type group struct {
		contributors []crypto.PublicKey
		members      map[string]struct{}
		commentary   []protocol.Commentary
	}
	groups := make(map[string]*group)
	for _, sub := range all {
		g, ok := groups[sub.Value]
		if !ok {
			g = &group{members: make(map[string]struct{})}
			groups[sub.Value] = g
		}
		id := sub.Contributor.String()
		if _, seen := g.members[id]; !seen {
			g.members[id] = struct{}{}
			g.contributors = append(g.contributors, sub.Contributor)
		}
		if sub.Message != "" {
			g.commentary = append(g.commentary, protocol.Commentary{Contributor: sub.Contributor, Message: sub.Message})
		}
	}

	// Keys the requester submitted, in order of first submission.
	requesterID := requester.String()
	var keys []string
	seenKeys := make(map[string]struct{})
	for _, sub := range all {
		if sub.Contributor.String() != requesterID {
			continue
		}
		if _, seen := seenKeys[sub.Value]; seen {
			continue
		}
		seenKeys[sub.Value] = struct{}{}
		keys = append(keys, sub.Value)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s has not submitted to %s", ErrNoResults, requester.Short(), c.name)
	}

	// Every contributor sharing a key with the requester is notified, but only
	// about the keys it submitted itself. The requester comes first and is
	// always answered; co-members only when one of their groups grew since
	// they were last notified.
	recipients := []crypto.PublicKey{requester}
	results := map[string]*protocol.KeyMatchResult{
		requesterID: {Computation: c.name},
	}
	for _, key := range keys {
		g := groups[key]
		match := protocol.KeyMatchGroup{
			Key:          key,
			Contributors: g.contributors,
			Commentary:   g.commentary,
		}
		for _, member := range g.contributors {
			id := member.String()
			result, ok := results[id]
			if !ok {
				result = &protocol.KeyMatchResult{Computation: c.name}
				results[id] = result
				recipients = append(recipients, member)
			}
			result.Matches = append(result.Matches, match)
		}
	}

	notifications := make([]*protocol.Mail, 0, len(recipients))
	for _, r := range recipients {
		id := r.String()
		result := results[id]
		if !c.markNotified(id, result) && id != requesterID {
			continue
		}
		notifications = append(notifications, &protocol.Mail{
			Route:    crypto.InboxRoute(r),
			KeyMatch: result,
		})
	}

	return &Outcome{
		Response: &protocol.Response{
			Code:  protocol.CheckInbox,
			Route: crypto.InboxRoute(requester),
		},
		Notifications: notifications,
	}, nil
}

// groupSize identifies a key-match group's state. Submissions are append-only,
// so a group only ever gains contributors and commentary.
type groupSize struct {
	contributors int
	commentary   int
}

// markNotified records result as delivered to recipient and reports whether
// any of its groups differs from what recipient was last sent.
func (c *Computation) markNotified(recipient string, result *protocol.KeyMatchResult) bool {
	sent, ok := c.notified[recipient]
	if !ok {
		sent = make(map[string]groupSize)
		c.notified[recipient] = sent
	}
	changed := false
	for _, match := range result.Matches {
		size := groupSize{contributors: len(match.Contributors), commentary: len(match.Commentary)}
		if sent[match.Key] != size {
			sent[match.Key] = size
			changed = true
		}
	}
	return changed
}

func (c *Computation) commentary() []protocol.Commentary {
	var out []protocol.Commentary
	for _, sub := range c.submissions.All() {
		if sub.Message != "" {
			out = append(out, protocol.Commentary{Contributor: sub.Contributor, Message: sub.Message})
		}
	}
	return out
}

// maxFractionDigits bounds the digits rendered for non-terminating means.
const maxFractionDigits = 16

// FormatDecimal renders r exactly as a decimal with at least one fractional
// digit, e.g. 150 as "150.0". Fractions are rounded to maxFractionDigits and
// trailing zeros are dropped, so 1/3 renders as "0.3333333333333333".
func FormatDecimal(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String() + ".0"
	}
	s := strings.TrimRight(r.FloatString(maxFractionDigits), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	if s == "-0.0" {
		return "0.0"
	}
	return s
}

func cloneResponse(r *protocol.Response) *protocol.Response {
	out := *r
	if r.Commentary != nil {
		out.Commentary = append([]protocol.Commentary(nil), r.Commentary...)
	}
	return &out
}
