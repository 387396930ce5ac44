// Package test_utils provides general testing utilities following KFP patterns
package test_utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"orca-agent-backend/tests/logger"

	"github.com/onsi/ginkgo/v2/types"
	. "github.com/onsi/gomega"
)

// GetRandomString generates a random string of specified length
func GetRandomString(length int) string {
	charset := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)

	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[num.Int64()]
	}

	return string(result)
}

// WriteLogFile writes test failure logs to file following KFP pattern
func WriteLogFile(specReport types.SpecReport, testName, logDirectory string) {
	stdOutput := specReport.CapturedGinkgoWriterOutput
	testLogFile := filepath.Join(logDirectory, testName+".log")

	logFile, err := os.Create(testLogFile)
	if err != nil {
		logger.Log("Failed to create log file due to: %s", err.Error())
		return
	}
	defer logFile.Close()

	_, err = logFile.Write([]byte(stdOutput))
	if err != nil {
		logger.Log("Failed to write to the log file, due to: %s", err.Error())
		return
	}

	logger.Log("Test failure log written to: %s", testLogFile)
}

// GenerateTestID creates a unique test identifier
func GenerateTestID(prefix string) string {
	timestamp := time.Now().Unix()
	randomSuffix := GetRandomString(6)
	return fmt.Sprintf("%s-%d-%s", prefix, timestamp, randomSuffix)
}

// StringPtr returns a pointer to the given string
func StringPtr(s string) *string {
	return &s
}

// WaitWithTimeout waits for a condition with timeout
func WaitWithTimeout(conditionFn func() bool, timeout time.Duration, message string) {
	Eventually(conditionFn, timeout, 50*time.Millisecond).Should(BeTrue(), message)
}
