// ABOUTME: Package documentation for monitor
// ABOUTME: Describes the WebSocket diagnostics server and its client
/*
Package monitor exposes a running engine's diagnostics over WebSocket.

Server pushes periodic counter snapshots to every connected client and,
for clients that ask, binary chunks of the master bus tap encoded as
PCM16 or Opus. Client is the matching consumer used by the tap CLI.
Engines on the local network can be found with Browse when the server
advertises itself via mDNS.

	srv, err := monitor.New(monitor.Config{
		Addr:  ":7513",
		Stats: statsFn,
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
	defer srv.Close()
*/
package monitor
