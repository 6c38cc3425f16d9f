// Package typedstore is a thin generic layer over a store chain that fixes the value type.
//
//	prefs := typedstore.New[Settings](chain, codec.NewJSONCodec())
//	s, err := prefs.Get(ctx, "user:1", Settings{Theme: "light"})
//	old, existed, err := prefs.Set(ctx, "user:1", Settings{Theme: "dark"})
//
// The generic helpers Get, Lookup and Set work on any store.IStore without creating a Store.
// Defaults are only returned for absent keys, a stored value equal to the default is found.
package typedstore
