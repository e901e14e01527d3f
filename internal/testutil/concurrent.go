package testutil

import "sync"

// RunConcurrently starts every fn at once, waits for all of them and fails
// the test with the first error reported.
func RunConcurrently(t TestingTB, fns ...func() error) {
	t.Helper()

	start := make(chan struct{})
	errs := make([]error, len(fns))
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}()
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent call %d failed: %v", i, err)
		}
	}
}
