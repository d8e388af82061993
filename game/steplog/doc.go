// Package steplog reads and writes step log records.
//
// A record is plain text in two sections:
//
//	#STEPS
//	0,0
//	0,1
//	1,1
//	#MAP
//	@*.
//	#*#
//	...
//
// Each #STEPS line is the "x,y" of a visited cell in visit order. The #MAP
// lines are the final grid, one row per line. Blank lines are ignored and
// both markers must appear exactly once with #STEPS first.
//
// Store keeps records on disk as <map>_Solved.txt next to each other in one
// directory.
package steplog
