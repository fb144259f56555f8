// See transport.go for the Link contract; serial.go and can.go provide the
// two concrete implementations the session layer is built against.
package transport
