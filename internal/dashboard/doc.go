// Package dashboard wires the live-update pipeline together.
//
//	Connection Manager → Router → Loop → view.Model → subscribers
//	                                ↑
//	        Fallback Poller / REST refetches post results here
//
// Every view mutation runs on the loop goroutine. Subscribers receive a
// cloned view.Model after each mutation and may hand it to any renderer.
package dashboard
