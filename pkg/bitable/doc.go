// Package bitable defines the public types of the Feishu multi-dimensional
// table (bitable) client: records, field descriptors, search filters, the
// response envelope, typed errors and the Client and Table interfaces.
//
// Create a client with feishu.New and bind table handles to it:
//
//	client, err := feishu.New(ctx, &bitable.Config{
//		AppID:     os.Getenv("FEISHU_APP_ID"),
//		AppSecret: os.Getenv("FEISHU_APP_SECRET"),
//	})
//	if err != nil {
//		return err
//	}
//
//	table := client.Table(bitable.TableCoordinates{AppToken: appToken, TableID: tableID})
//
//	record, err := table.Insert(ctx, bitable.Fields{"name": "A"})
//
// Every table operation returns an error describing why it failed. Use
// KindOf to separate transport, decoding and API failures, or errors.As with
// *APIError, *TransportError, *EmptyResponseError and *DecodeError.
//
// Iterate walks every page of a search:
//
//	err := table.Iterate(ctx, &bitable.SearchOptions{PageSize: 100}, func(records []bitable.Record) error {
//		for _, r := range records {
//			fmt.Println(r.RecordID)
//		}
//		return nil
//	})
//
// Iteration stops when the server reports no more data or omits the page
// token, when a page token repeats, or after Config.MaxPages pages.
package bitable
