// Package workflow runs directed graphs of steps over a shared State.
//
// Each step receives a copy of the state and returns a Patch that the
// Engine merges before evaluating the step's outgoing edge. A checkpoint is
// written after every step. A step that needs human input returns an
// *Interrupt built with Suspend; the engine stores the suspension and
// returns control to the caller, which later calls Resume with the input.
//
//	g, err := workflow.NewGraph("qa").
//		AddStep("decompose", decompose).
//		AddStep("retrieve", retrieve).
//		AddEdge("decompose", "retrieve").
//		AddEdge("retrieve", workflow.End).
//		SetEntry("decompose").
//		Compile()
package workflow
