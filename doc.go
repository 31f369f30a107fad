// Package katcp is a client for KATCP, the line-oriented text protocol used to
// control radio astronomy instruments and similar devices over TCP.
//
// A Client owns one connection. Requests are serialized: each call to
// Request writes "?name args..." and collects the informs sharing the
// request's name plus the terminal reply into a Message. Informs unrelated to
// the request in flight are kept aside and returned by Client.Informs.
//
//	client, err := katcp.Dial(ctx, katcp.Config{Host: "roach020203"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	msg, err := client.Request(ctx, "sensor_value", "adc.temperature")
//	if err != nil {
//	    return err // transport failure after one reconnect and retry
//	}
//	if !msg.OK() {
//	    return fmt.Errorf("device said %s: %s", msg.Status(), msg.Payload())
//	}
//
// A reply with a status other than "ok" is not an error for Request; use
// Client.Call to get a *StatusError instead.
//
// Pool and Cluster build on Client for parallel requests to one device and
// for routing over several devices. The wire package holds the codec.
package katcp
