package lockfile

import (
	"context"
	"os"
	"time"
)

// Take acquires an exclusive lock file at path, polling once a second
// until it wins or the context is canceled. The staging directory has
// exactly one writer per phase; the lock extends that invariant
// across concurrent pipeline invocations. The returned closer
// releases the lock.
//
// A run killed before its closer fires leaves the lock file behind;
// recovery is removing the file by hand. Callers surface the path in
// their waiting callback so a stuck run names the file to remove.
func Take(ctx context.Context, path string, waiting func()) (func(), error) {
	tk := time.NewTicker(time.Second)
	defer tk.Stop()

	var (
		f   *os.File
		err error
	)

	for {
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			break
		}

		if waiting != nil {
			waiting()
		}

		select {
		case <-tk.C:
			// ok
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.Close()

	closer := func() {
		os.Remove(path)
	}

	return closer, nil
}
