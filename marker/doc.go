// Package marker locates highlighted regions inside snippet source blocks.
//
// Authors delimit the region a reader sees by default with two comment
// lines holding literal tokens:
//
//	#include <stdio.h>
//	int main(void) {
//	    // START_HIGHLIGHT
//	    printf("hi\n");
//	    // END_HIGHLIGHT
//	    return 0;
//	}
//
// [Locate] finds the pair, [ExtractVisible] returns the lines between it,
// and [StripMarkerLines] removes marker lines entirely. [NewView] combines
// the three into the visible, clean and full variants a snippet displays.
//
// All functions are pure and safe for concurrent use.
package marker
