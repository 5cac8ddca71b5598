// Package stream serves camera video and snapshots over HTTP.
//
// A client opens a stream with an unranged GET, which starts a transcoder
// for the camera and answers 200 with no body. The player then issues a
// ranged GET; the first one attaches to the transcoder's output and
// receives it as a 206 chunked response. Ranged requests against an
// endpoint with no live, unattached transcode get 204.
//
// Session states:
//
//	idle ──unranged──▶ running ──ranged──▶ attached ──exit/disconnect──▶ idle
//	                     │  ▲
//	            unranged │  │ kill old, spawn new
//	                     └──┘
//	running ──idle timeout / max duration──▶ idle
//
// At most one transcoder runs per endpoint. Supersession kills the old
// process and spawns the new one under the manager lock.
package stream
