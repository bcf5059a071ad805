// Package yeelight implements the client side of the Yeelight LAN control
// protocol used to drive the relay's lights.
//
// Each bulb listens on TCP port 55443. Requests and responses are single-line
// JSON objects terminated by "\r\n":
//
//	-> {"id":1,"method":"set_rgb","params":[16711680,"sudden",0]}
//	<- {"id":1,"result":["ok"]}
//
// Bulbs may also push unsolicited "props" notifications on the same
// connection; these carry no id and are skipped while waiting for a response.
//
// # Usage
//
//	conn, err := yeelight.Dial(ctx, "192.168.1.40", yeelight.Config{})
//	if err != nil {
//	    return err
//	}
//	bulb, err := yeelight.Attach(conn, yeelight.Config{})
//	if err != nil {
//	    return err
//	}
//	defer bulb.Close()
//
//	err = bulb.SetRGB(ctx, 0xFF0000, yeelight.EffectSudden, 0)
//
// # Thread Safety
//
// A Bulb serialises its own request/response exchanges, so it is safe to call
// from several goroutines. Callers that need several commands to land as one
// unit must provide their own ordering (see the device package).
package yeelight
