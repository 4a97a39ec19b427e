package xquota_test

import (
	"fmt"
	"time"

	"github.com/omeyang/xflow/pkg/resilience/xflow"
	"github.com/omeyang/xflow/pkg/resilience/xquota"
)

func ExampleRegistry_ChainFor() {
	reg, err := xquota.New([]xquota.Rule{
		{Type: xquota.TypeServiceDefault, QPS: 1},
		{Type: xquota.TypeNode, ResponseType: "text/plain", ResponseContent: "busy"},
	})
	if err != nil {
		panic(err)
	}

	// 固定时钟，两次准入落在同一秒
	now := time.UnixMilli(1_700_000_000_000)
	fs, err := xflow.New(xflow.WithClock(func() time.Time { return now }))
	if err != nil {
		panic(err)
	}
	defer fs.Close()

	chain := reg.ChainFor("crm", "", "order", "/pay")
	for _, rc := range chain.Resources() {
		fmt.Println(rc.ResourceID, rc.MaxQPS)
	}

	tok, _ := fs.Acquire(chain)
	defer tok.Done(true, 200)

	_, res := fs.Acquire(chain)
	fmt.Println(res.Allowed, res.BlockType, res.BlockedResourceID)
	fmt.Println(reg.BlockResponse(res.BlockedResourceID))
	// Output:
	// ^^_global^^ 0
	// ^^^order^ 1
	// false QPS ^^^order^
	// text/plain busy
}
