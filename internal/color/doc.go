// Package color provides the named color table used by the chat commands.
//
// A Table maps a canonical lowercase name to an RGB triple. Tables are built
// once at startup and never mutated, so they can be shared between goroutines
// without locking.
//
// # Usage
//
//	table := color.Default()
//	rgb, ok := table.Resolve("Red")   // case-insensitive
//	value := rgb.Pack()               // 0xFF0000
//
//	for _, l := range table.Enumerate() {
//	    fmt.Printf("%d. %s\n", l.Index, l.Name)
//	}
package color
