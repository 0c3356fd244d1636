package report

// Schema is the JSON Schema (Draft 2020-12) for the covrisk results
// JSON output. It documents the structure produced by WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/risklab/covrisk/results.schema.json",
  "title": "covrisk Results Report",
  "description": "Output schema for covrisk analyze --format=json",
  "type": "object",
  "required": ["schema_version", "generated_by", "repositories"],
  "properties": {
    "schema_version": {
      "type": "string",
      "description": "Report structure version (semver)"
    },
    "generated_by": {
      "type": "string",
      "description": "Producing tool"
    },
    "run": { "$ref": "#/$defs/RunMeta" },
    "repositories": {
      "type": "array",
      "items": { "$ref": "#/$defs/Repository" }
    }
  },
  "$defs": {
    "Repository": {
      "type": "object",
      "required": ["repo", "rows", "top_k"],
      "properties": {
        "repo": {
          "type": "string",
          "description": "Repository name"
        },
        "rows": {
          "type": "array",
          "items": { "$ref": "#/$defs/ResultRow" }
        },
        "top_k": {
          "type": "array",
          "items": { "$ref": "#/$defs/ResultRow" },
          "description": "HIGH-smell shortlist, confidence then lloc descending"
        },
        "failure": {
          "type": "string",
          "description": "Why the repository produced no rows"
        }
      }
    },
    "ResultRow": {
      "type": "object",
      "required": [
        "repo_name", "file_path", "method_name", "start_line",
        "end_line", "cc", "lloc", "difficulty", "smell_label",
        "coverage_percent", "coverage_bucket", "risk_category",
        "recommendations"
      ],
      "properties": {
        "repo_name": { "type": "string" },
        "file_path": {
          "type": "string",
          "description": "Repository-relative, forward-slash normalized"
        },
        "method_name": { "type": "string" },
        "start_line": { "type": "integer", "minimum": 0 },
        "end_line": { "type": "integer", "minimum": 0 },
        "cc": { "type": "integer", "minimum": 0 },
        "lloc": { "type": "integer", "minimum": 0 },
        "difficulty": { "type": "number", "minimum": 0 },
        "smell_label": {
          "type": "string",
          "enum": ["HIGH", "LOW"]
        },
        "confidence": {
          "type": "number",
          "minimum": 0,
          "maximum": 1,
          "description": "Classifier confidence, when the dataset carries one"
        },
        "coverage_percent": {
          "type": "number",
          "minimum": 0,
          "maximum": 100
        },
        "coverage_bucket": {
          "type": "string",
          "enum": ["ZERO", "LOW", "MEDIUM", "HIGH"]
        },
        "risk_category": {
          "type": "string",
          "enum": ["Hidden Risk", "Refactor Candidate", "Low Value", "Safe Zone"]
        },
        "recommendations": {
          "type": "array",
          "items": { "type": "string" }
        }
      }
    },
    "RunMeta": {
      "type": "object",
      "required": ["tool_version", "repositories", "duration_ms"],
      "properties": {
        "tool_version": { "type": "string" },
        "repositories": {
          "type": "integer",
          "description": "Repositories attempted in this run"
        },
        "duration_ms": {
          "type": "integer",
          "description": "Run duration in milliseconds"
        },
        "timestamp": {
          "type": "string",
          "format": "date-time"
        }
      }
    }
  }
}`
