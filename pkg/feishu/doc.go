// Package feishu provides the primary entry point for constructing a Feishu
// bitable API client that implements the bitable.Client interface.
//
// It layers configuration, HTTP transport and tenant token acquisition on top of
// the interfaces and types defined in the bitable package. Most applications
// import feishu to build a client, then bind table handles with Client.Table.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/bitable-client/pkg/bitable"
//	  "github.com/fivetwenty-io/bitable-client/pkg/feishu"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  cli, err := feishu.New(ctx, &bitable.Config{
//	    AppID:     "cli_a1b2c3",
//	    AppSecret: "secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with a tenant access token you already have:
//	  cli, err = feishu.NewWithToken(ctx, "t-g104...")
//
//	  table := cli.Table(bitable.TableCoordinates{AppToken: "bascn...", TableID: "tbl..."})
//	  rec, err := table.Insert(ctx, bitable.Fields{"Name": "A"})
//	  _ = rec
//	}
//
// The base URL defaults to https://open.feishu.cn/open-apis. Set Config.BaseURL
// to use Lark (https://open.larksuite.com/open-apis) or a test server.
package feishu
