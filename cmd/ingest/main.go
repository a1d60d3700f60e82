// ingest is the ingestion adapter: `ingest publish` sends InboundMessage JSON lines to the
// incoming topic and `ingest serve` runs the HTTP intake (web form and channel webhooks).
package main

import "log"

func main() {
	if err := Execute(); err != nil {
		log.Fatal(err)
	}
}
