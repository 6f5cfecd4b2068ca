package carrier

import "time"

// readPollInterval bounds how long a blocking socket read waits
// before looping back to check ctx.Done(), matching §5's "spin with
// short blocking socket reads" suspension point when read_thread_hertz
// is unset.
const readPollInterval = 200 * time.Millisecond

func deadline() time.Time { return time.Now().Add(readPollInterval) }
