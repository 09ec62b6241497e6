package memory

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type WeaviateDecodeTestSuite struct {
	suite.Suite
}

func TestWeaviateDecodeTestSuite(t *testing.T) {
	suite.Run(t, new(WeaviateDecodeTestSuite))
}

func (suite *WeaviateDecodeTestSuite) object(certainty interface{}) map[string]interface{} {
	obj := map[string]interface{}{
		"memoryId":  "mem-1",
		"ticker":    "AAPL",
		"role":      "oversight",
		"content":   "Concentration risk is rising in this position.",
		"salience":  0.5,
		"createdAt": "2024-03-01T00:00:00Z",
	}

	if certainty != nil {
		obj["_additional"] = map[string]interface{}{"certainty": certainty}
	}

	return obj
}

func (suite *WeaviateDecodeTestSuite) TestParseNeighborMapsCertaintyToCosine() {
	neighbor, ok := parseNeighbor(suite.object(0.9))

	suite.Require().True(ok)
	suite.Equal("mem-1", neighbor.Record.ID)
	suite.Equal("AAPL", neighbor.Record.Ticker)
	suite.InDelta(0.8, neighbor.Similarity, 1e-9)
}

func (suite *WeaviateDecodeTestSuite) TestParseNeighborWithoutAdditionalIsZeroSimilarity() {
	neighbor, ok := parseNeighbor(suite.object(nil))

	suite.Require().True(ok)
	suite.Zero(neighbor.Similarity)
}

func (suite *WeaviateDecodeTestSuite) TestParseNeighborIgnoresNonNumericCertainty() {
	neighbor, ok := parseNeighbor(suite.object("high"))

	suite.Require().True(ok)
	suite.Zero(neighbor.Similarity)
}

func (suite *WeaviateDecodeTestSuite) TestParseNeighborRejectsNonObjectPayloads() {
	_, ok := parseNeighbor("not an object")
	suite.False(ok)

	_, ok = parseNeighbor(nil)
	suite.False(ok)
}

func (suite *WeaviateDecodeTestSuite) TestParseRecordRejectsUnknownRole() {
	obj := suite.object(0.9)
	obj["role"] = "astrologer"

	_, ok := parseRecord(obj)
	suite.False(ok)
}

func (suite *WeaviateDecodeTestSuite) TestParseRecordParsesTimestamp() {
	rec, ok := parseRecord(suite.object(nil))

	suite.Require().True(ok)
	suite.Equal(2024, rec.CreatedAt.Year())
	suite.Equal(3, int(rec.CreatedAt.Month()))
}
