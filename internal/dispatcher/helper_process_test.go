package dispatcher

import (
	"bufio"
	"fmt"
	"os"
	"testing"

	"github.com/tokenfleet/dispatchctl/internal/wire"
)

// TestMain re-execs the test binary as a fake replica control process, the
// same technique internal/workertable's own tests use, so Dispatcher.Run can
// be exercised against a real *workertable.Table without a replica worker
// binary on disk.
func TestMain(m *testing.M) {
	if os.Getenv("DISPATCHCTL_WANT_HELPER_PROCESS") == "1" {
		fmt.Println("init ok")
		r := bufio.NewReader(os.Stdin)
		for {
			if _, err := wire.Decode(r); err != nil {
				break
			}
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}
