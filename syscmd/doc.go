// Package syscmd runs external commands with an optional watchdog, captures
// their output in full, and classifies how they ended.
//
// Basic usage:
//
//	res, err := syscmd.Run(ctx, "echo", "hello")
//	out, err := syscmd.Output(ctx, "ls", "-la")
//
// Advanced usage with configuration:
//
//	exec := syscmd.New().
//		Timeout(10 * time.Second).
//		Retry(3, 2*time.Second)
//
//	res, err := exec.Execute(ctx, "restart nginx", "systemctl", "restart", "nginx")
//
// A process killed by its watchdog (timeout, RequestStop or a cancelled
// context) is not an error: the returned Result has Terminated set.
//
// Predefined configurations:
//
//	syscmd.Quick()     // 5s timeout
//	syscmd.Resilient() // 30s timeout, 3 retries
//
// An Executor tracks at most one in-flight command for RequestStop. Running
// commands concurrently on the same Executor is not supported; use one
// Executor per concurrent caller.
package syscmd
