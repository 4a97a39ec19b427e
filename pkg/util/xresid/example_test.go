package xresid_test

import (
	"fmt"

	"github.com/omeyang/xflow/pkg/util/xresid"
)

func ExampleBuild() {
	id := xresid.Build("crm", "", "", "order", "/v1/list")
	fmt.Println(id)

	k, _ := xresid.Parse(id)
	fmt.Println(k.App, k.Service, k.Path)
	// Output:
	// crm^^^order^/v1/list
	// crm order /v1/list
}
