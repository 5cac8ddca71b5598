// Package process runs bounded child processes whose output is consumed as
// a byte stream.
//
// It is used for camera transcoders: one ffmpeg per stream session, started
// on demand, read through Stdout, and torn down on supersession, timeout or
// client disconnect.
//
// Features:
//   - Process group per child so signals reach grandchildren too
//   - Graceful stop: SIGTERM to the group, SIGKILL after a grace period
//   - Hard run-time bound through a context deadline
//   - Stderr capture to the debug log
//   - Byte and read counters for the stdout stream
//
// Example usage:
//
//	p := process.New(process.Config{
//	    Name:       "transcode-cam1",
//	    Binary:     "/usr/bin/ffmpeg",
//	    Args:       args,
//	    MaxRuntime: 60 * time.Second,
//	})
//
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	defer p.Stop()
//	io.Copy(w, p.Stdout())
package process
