// Package maps manages the treasure map files served by the hunt service.
//
// Maps are plain text files with a .txt extension, one grid row per line:
//
//	..#.
//	.#T.
//	....
//
// Usage:
//
//	manager, err := maps.NewManager("maps")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	grid, err := manager.LoadMap("classic")
//	name, def := manager.GetDefault()
//	infos, err := manager.ListMaps()
//
// Loaded maps are cached. Call RefreshCache to drop the cache, or Watch to
// invalidate entries as files change on disk.
package maps
