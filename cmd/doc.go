// Package cmd provides the coordinator binaries.
//
// # Commands
//
// coordinator: Runs the enclave engine behind the mail API. Suitable for
// building a single TEE VM image.
//
//	go run ./cmd/coordinator --config=coordinator.yaml
//	go run ./cmd/coordinator --addr=:8080 --attestation=dummy
//
// quorumctl: Participant CLI. Verifies the enclave attestation, then sends
// signed requests and prints the replies.
//
//	go run ./cmd/quorumctl keygen
//	go run ./cmd/quorumctl submit -u http://localhost:8080 -k $KEY -n salary -v 100
//
// # HTTP Configuration Mode
//
// The coordinator supports waiting for configuration via HTTP POST, useful
// for TEE deployments where configuration is provided after boot:
//
//	# Start the coordinator in wait mode
//	go run ./cmd/coordinator --wait-config --addr=:8080
//
//	# Submit configuration to start it
//	curl -X POST http://localhost:8080/config --data-binary @coordinator.yaml
//
// # Configuration
//
// The coordinator reads a YAML file via the --config flag. Command-line flags
// override config file values. Unknown keys are rejected.
//
//	http_addr: ":8080"
//	signing_key: ""
//	log:
//	  format: json
//	  level: info
//	engine:
//	  max_participants: 1024
//	  max_name_length: 256
//	  max_value_length: 4096
//	  max_message_length: 4096
//	rate_limit:
//	  rps: 20
//	  burst: 40
//	cors_origins: []
//	collect_max_skew: 5m
//	inbox:
//	  backend: memory
//	attestation:
//	  provider: dummy
//	  remote_url: ""
//	server:
//	  drain_duration: 5s
//	  graceful_shutdown_duration: 10s
package cmd
