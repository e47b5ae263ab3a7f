// Package retry provides the two retry policies used to make flaky external
// operations resilient.
//
// The policies have different exhaustion semantics and are kept separate on
// purpose:
//
//   - OnError retries an operation while it fails with a retryable
//     failure.Kind. On exhaustion the last qualifying error is returned
//     unchanged. Errors of any other kind are returned on first occurrence.
//   - UntilTrue and UntilValid re-invoke an operation until its result is
//     accepted. Exhaustion is not an error: the last observed value is
//     returned and the caller decides.
//
// Basic usage:
//
//	out, err := retry.OnError(ctx, retry.Exception{
//		Kind:     failure.Execution,
//		Attempts: 3,
//		Delay:    time.Second,
//		Label:    "adb devices",
//	}, func() (syscmd.Result, error) {
//		return exec.Execute(ctx, "list devices", "adb", "devices")
//	})
//
//	ok, err := retry.UntilTrue(ctx, retry.Predicate{Attempts: 5, Delay: 500 * time.Millisecond}, isBooted)
package retry
