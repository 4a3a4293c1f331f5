package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dasmlab/aarogya/pkg/service"
	"github.com/sirupsen/logrus"
)

var (
	serverAddr = flag.String("addr", "localhost:50051", "gRPC server address")
	lang       = flag.String("lang", "en", "Language of the question (e.g., en, hi, pa)")
	textFile   = flag.String("file", "", "Path to a file holding the question")
	text       = flag.String("text", "", "Question text (if file not provided)")
	timeout    = flag.Duration("timeout", 2*time.Minute, "Request timeout")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	var question string
	if *textFile != "" {
		data, err := os.ReadFile(*textFile)
		if err != nil {
			logger.WithError(err).Fatalf("Failed to read file: %s", *textFile)
		}
		question = string(data)
	} else if *text != "" {
		question = *text
	} else {
		logger.Fatal("Either -file or -text must be provided")
	}

	requestID := uuid.NewString()
	logger.WithFields(logrus.Fields{
		"server":      *serverAddr,
		"lang":        *lang,
		"text_length": len(question),
		"request_id":  requestID,
	}).Info("Connecting to Aarogya server...")

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to server")
	}
	defer conn.Close()

	client := service.NewChatClient(conn)

	req, err := service.NewChatRequest(question, *lang)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build request")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, service.RequestIDHeader, requestID)

	startTime := time.Now()
	resp, err := client.Chat(ctx, req)
	duration := time.Since(startTime)
	if err != nil {
		st, _ := status.FromError(err)
		if st.Code() == codes.InvalidArgument {
			logger.WithField("error", st.Message()).Fatal("Question rejected")
		}
		logger.WithError(err).Fatal("Chat failed")
	}

	fields := resp.GetFields()
	separator := strings.Repeat("=", 80)
	dashLine := strings.Repeat("-", 80)

	fmt.Println()
	fmt.Println(separator)
	fmt.Println("CHAT RESULT")
	fmt.Println(separator)
	fmt.Printf("\nLanguage: %s\n", fields["lang"].GetStringValue())
	fmt.Printf("Time: %.2f seconds\n", duration.Seconds())
	if warn := fields["warn"].GetStringValue(); warn != "" {
		fmt.Printf("Warning: %s\n", warn)
	}
	if debug := fields["debug"].GetStructValue(); debug != nil {
		fmt.Printf("Normalized English: %s\n", debug.GetFields()["normalized_en"].GetStringValue())
	}
	fmt.Println()
	fmt.Println(dashLine)
	fmt.Println("QUESTION:")
	fmt.Println(dashLine)
	fmt.Println(question)
	fmt.Println()
	fmt.Println(dashLine)
	fmt.Println("ANSWER:")
	fmt.Println(dashLine)
	fmt.Println(fields["answer"].GetStringValue())
	fmt.Println()
	fmt.Println(separator)

	logger.WithFields(logrus.Fields{
		"duration_seconds": duration.Seconds(),
		"request_id":       requestID,
	}).Info("Chat completed")
}
