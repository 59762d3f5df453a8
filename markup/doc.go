// Package markup turns XML documents into flat streams of element events
// and back.
//
// A [Source] yields [Event] values: an element start carrying its attributes,
// an element end, and a final EOF. Character data, comments and processing
// instructions are dropped; the document formats read by kra carry all of
// their information in elements and attributes.
//
//	dec := markup.NewDecoder(r)
//	for {
//		ev, err := dec.Next()
//		if err != nil {
//			return err
//		}
//		if ev.Kind == markup.EOF {
//			break
//		}
//	}
//
// [NewReplay] serves a prepared event list, which is how tests and tools
// feed synthetic trees to a consumer without writing XML.
package markup
