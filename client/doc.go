// Package client is the participant side of the coordinator protocol.
//
// A Client signs requests with the participant's Ed25519 key, posts them to the
// host, and polls the correlation route for the enclave's signed reply:
//
//	c, _ := client.New("https://coordinator.example", key)
//	if _, err := c.Verify(ctx, &tdx.TDXProvider{}, measurements); err != nil {
//	    return err
//	}
//	resp, err := c.Submit(ctx, "salaries", "120000", "")
//
// Key-match results are not returned inline. A CHECK_INBOX response means the
// groups were posted to the participant's own route; KeyMatches drains it.
package client
