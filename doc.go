// Package pairreader is a reading companion over a knowledge base of
// uploaded documents. An Agent routes each request either to targeted
// question answering, with a human review of the generated sub-queries, or
// to an exploratory overview built by clustering a sample of the corpus.
//
//	agent, err := pairreader.NewAgent(cfg, channel.NewConsole(os.Stdin, os.Stdout))
//	if err != nil {
//		return err
//	}
//	defer agent.Close()
//
//	_, err = agent.Handle(ctx, threadID, "/Create notes.txt", nil)
//	_, err = agent.Handle(ctx, threadID, "What is this about?", nil)
package pairreader
