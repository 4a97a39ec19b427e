package xflow_test

import (
	"fmt"

	"github.com/omeyang/xflow/pkg/resilience/xflow"
	"github.com/omeyang/xflow/pkg/util/xresid"
)

func ExampleFlowStat_Acquire() {
	fs, err := xflow.New()
	if err != nil {
		panic(err)
	}
	defer fs.Close()

	chain := xflow.NewChain(
		xflow.ResourceConfig{ResourceID: xresid.NodeResource},
		xflow.ResourceConfig{ResourceID: xresid.Build("", "", "", "order", ""), MaxConcurrency: 1},
	)

	tok, res := fs.Acquire(chain)
	fmt.Println("first:", res.Allowed)

	_, res = fs.Acquire(chain)
	fmt.Println("second:", res.Allowed, res.BlockType)

	tok.Release(12, true, 200)
	fmt.Println("in flight:", fs.CurrentConcurrency(xresid.NodeResource))
	// Output:
	// first: true
	// second: false CONCURRENT_REQUEST
	// in flight: 0
}

func ExampleFlowStat_WindowStat() {
	fs, _ := xflow.New()
	defer fs.Close()

	const bucket = 1_700_000_000_000
	chain := xflow.NewChain(xflow.ResourceConfig{ResourceID: "^^^order^", MaxQPS: 2})
	for range 3 {
		if fs.CheckAdmission(chain, bucket).Allowed {
			fs.Release(chain, bucket, 20, true, 200)
		}
	}

	w := fs.WindowStat("^^^order^", bucket, bucket+1000)
	fmt.Println(w.Total, w.BlockRequests, *w.AvgRt)
	// Output:
	// 2 1 20
}
