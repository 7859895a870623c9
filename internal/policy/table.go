package policy

// actionTable maps SDK client method names to IAM actions, keyed by the
// service package suffix of github.com/aws/aws-sdk-go-v2/service/<svc>.
// A method contributes a permission only when its service package is
// imported by the scanned file, which keeps inference precise without
// type checking.
var actionTable = map[string]map[string]string{
	"s3": {
		"GetObject":     "s3:GetObject",
		"HeadObject":    "s3:GetObject",
		"PutObject":     "s3:PutObject",
		"CopyObject":    "s3:PutObject",
		"DeleteObject":  "s3:DeleteObject",
		"ListObjectsV2": "s3:ListBucket",
		"HeadBucket":    "s3:ListBucket",
	},
	"dynamodb": {
		"GetItem":        "dynamodb:GetItem",
		"BatchGetItem":   "dynamodb:BatchGetItem",
		"PutItem":        "dynamodb:PutItem",
		"BatchWriteItem": "dynamodb:BatchWriteItem",
		"UpdateItem":     "dynamodb:UpdateItem",
		"DeleteItem":     "dynamodb:DeleteItem",
		"Query":          "dynamodb:Query",
		"Scan":           "dynamodb:Scan",
	},
	"sqs": {
		"SendMessage":        "sqs:SendMessage",
		"SendMessageBatch":   "sqs:SendMessage",
		"ReceiveMessage":     "sqs:ReceiveMessage",
		"DeleteMessage":      "sqs:DeleteMessage",
		"DeleteMessageBatch": "sqs:DeleteMessage",
		"GetQueueUrl":        "sqs:GetQueueUrl",
	},
	"sns": {
		"Publish":      "sns:Publish",
		"PublishBatch": "sns:Publish",
		"Subscribe":    "sns:Subscribe",
	},
	"lambda": {
		"Invoke":      "lambda:InvokeFunction",
		"InvokeAsync": "lambda:InvokeFunction",
	},
	"secretsmanager": {
		"GetSecretValue": "secretsmanager:GetSecretValue",
		"PutSecretValue": "secretsmanager:PutSecretValue",
	},
	"ssm": {
		"GetParameter":       "ssm:GetParameter",
		"GetParameters":      "ssm:GetParameters",
		"GetParametersByPath": "ssm:GetParametersByPath",
		"PutParameter":       "ssm:PutParameter",
	},
	"kms": {
		"Encrypt":         "kms:Encrypt",
		"Decrypt":         "kms:Decrypt",
		"GenerateDataKey": "kms:GenerateDataKey",
	},
	"ses": {
		"SendEmail":    "ses:SendEmail",
		"SendRawEmail": "ses:SendRawEmail",
	},
}

// basePermissions are always granted so a function can write its logs,
// even when nothing could be inferred from its source.
var basePermissions = []Permission{
	{Service: "logs", Action: "logs:CreateLogGroup"},
	{Service: "logs", Action: "logs:CreateLogStream"},
	{Service: "logs", Action: "logs:PutLogEvents"},
}
