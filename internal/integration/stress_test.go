package integration

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
)

// Places and processes orders concurrently and asserts no unit of stock is
// allocated twice.
func TestIntegration_ConcurrentProcessingNeverOverAllocates(t *testing.T) {
	s := newStack(t)
	const stock = 20
	pid := s.addProduct(t, "Contended", "1.00", stock)

	const placers, perPlacer = 10, 5
	var wg sync.WaitGroup
	wg.Add(placers)
	errCh := make(chan error, placers*perPlacer*2)
	for g := 0; g < placers; g++ {
		go func(gid int) {
			defer wg.Done()
			for i := 0; i < perPlacer; i++ {
				body := fmt.Sprintf(`{"productId":%d,"quantity":1,"customerName":"c-%d-%d","priority":%d}`, pid, gid, i, i%3+1)
				if code, b, err := request(http.MethodPost, s.url+"/orders", body); err != nil || code != http.StatusCreated {
					errCh <- fmt.Errorf("place: got %d %s %v", code, b, err)
				}
				if code, b, err := request(http.MethodPost, s.url+"/orders/process", `{"count":3}`); err != nil || code != http.StatusOK {
					errCh <- fmt.Errorf("process: got %d %s %v", code, b, err)
				}
			}
		}(g)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
	s.process(t, "")

	code, b := send(t, http.MethodGet, s.url+"/orders?status=completed", "")
	if code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", code)
	}
	var completed []struct {
		ProductID int64 `json:"productId"`
		Quantity  int64 `json:"quantity"`
	}
	mustDecode(t, b, &completed)
	var allocated int64
	for _, o := range completed {
		if o.ProductID == pid {
			allocated += o.Quantity
		}
	}
	left := s.product(t, pid).Quantity
	if left < 0 {
		t.Fatalf("stock went negative: %d", left)
	}
	if allocated+left != stock {
		t.Fatalf("allocated %d + left %d != %d", allocated, left, stock)
	}
	if allocated != stock {
		t.Fatalf("expected all %d units allocated, got %d", stock, allocated)
	}
}

func TestIntegration_ConcurrentStockAdjustments(t *testing.T) {
	s := newStack(t)
	pid := s.addProduct(t, "Adjusted", "1.00", 100)

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)
	for g := 0; g < workers; g++ {
		go func(gid int) {
			defer wg.Done()
			delta := 3
			if gid%2 == 1 {
				delta = -2
			}
			url := fmt.Sprintf("%s/inventory/%d", s.url, pid)
			if code, b, err := request(http.MethodPut, url, fmt.Sprintf(`{"quantityChange":%d}`, delta)); err != nil || code != http.StatusOK {
				errCh <- fmt.Errorf("adjust: got %d %s %v", code, b, err)
			}
		}(g)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}

	// Ten increases of 3 and ten decreases of 2 from 100.
	if got := s.product(t, pid).Quantity; got != 110 {
		t.Fatalf("expected 110, got %d", got)
	}
}
