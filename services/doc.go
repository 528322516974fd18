/*
Package services runs the host side of the coordinator: it relays signed
participant requests to the enclave and stores the enclave's signed replies
until participants collect them.

# Endpoints

HTTPHost registers:

  - POST /mail: body is a protocol.Signed[protocol.ClientRequest]. The reply is
    posted to the inbox route named by the X-Correlation-Id header (a UUID,
    generated if absent) and the call answers 202 with a MailReceipt.
    Key-match notifications are posted to crypto.InboxRoute of each recipient.
  - POST /inbox: body is a protocol.Signed[protocol.CollectRequest]. Drains a
    route. Key-match routes can only be drained by their owner.
  - GET /attestation: the enclave signing key with TEE evidence over it.
  - GET /config: the request limits the enclave enforces.

POST routes are rate limited per client address with golang.org/x/time/rate.

# Inboxes

InMemoryInbox keeps mail in process memory. PostgresInbox stores it in
PostgreSQL through lib/pq so that undelivered mail survives restarts of the
host. Both drain on Collect.
*/
package services
