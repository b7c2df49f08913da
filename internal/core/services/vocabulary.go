package services

import "github.com/Odushhh/tech-support-chatbot/internal/core/domain"

// knownLibraries are library, framework and tool names recognised as entities.
var knownLibraries = []string{
	// JavaScript and Node
	"npm", "yarn", "pnpm", "node", "node.js", "nodejs", "deno", "bun",
	"react", "react-native", "next.js", "nextjs", "vue", "vue-router", "nuxt", "angular", "svelte",
	"webpack", "vite", "rollup", "babel", "eslint", "prettier", "jest", "mocha", "cypress",
	"typescript", "express", "electron", "jquery", "redux",
	// Python
	"python", "python3", "pip", "conda", "virtualenv", "venv", "django", "flask", "fastapi",
	"numpy", "pandas", "pytest", "tensorflow", "pytorch", "matplotlib", "scikit-learn",
	// JVM and .NET
	"java", "kotlin", "spring", "spring-boot", "maven", "gradle", "android", "junit",
	".net", "dotnet", "c#", "asp.net", "nuget",
	// Systems
	"golang", "rust", "cargo", "c++", "cmake", "gcc", "clang", "llvm",
	// Ruby, PHP
	"ruby", "rails", "bundler", "php", "composer", "laravel",
	// Infrastructure
	"docker", "docker-compose", "kubernetes", "kubectl", "helm", "terraform", "ansible",
	"nginx", "apache", "git", "github", "ssh", "ssl", "openssl", "aws", "azure", "gcp",
	"linux", "ubuntu", "debian", "windows", "macos", "wsl", "homebrew", "bash", "powershell",
	// Data
	"postgres", "postgresql", "mysql", "sqlite", "mongodb", "redis", "elasticsearch", "kafka",
	"graphql", "grpc",
}

// stopwords are dropped from keywords.
var stopwords = map[string]bool{
	"a": true, "about": true, "after": true, "all": true, "also": true, "am": true, "an": true,
	"and": true, "any": true, "anyone": true, "are": true, "as": true, "at": true, "be": true,
	"been": true, "before": true, "being": true, "but": true, "by": true, "can": true,
	"could": true, "did": true, "do": true, "does": true, "doing": true, "for": true,
	"from": true, "get": true, "getting": true, "got": true, "had": true, "has": true,
	"have": true, "having": true, "he": true, "hello": true, "help": true, "her": true,
	"here": true, "hi": true, "his": true, "how": true, "i": true, "if": true, "in": true,
	"into": true, "is": true, "it": true, "its": true, "just": true, "know": true, "like": true,
	"me": true, "my": true, "need": true, "no": true, "not": true, "of": true, "on": true,
	"or": true, "our": true, "please": true, "should": true, "so": true, "some": true,
	"still": true, "than": true, "thanks": true, "that": true, "the": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true, "this": true,
	"to": true, "trying": true, "up": true, "use": true, "using": true, "want": true,
	"was": true, "way": true, "we": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "while": true, "who": true, "why": true, "will": true,
	"with": true, "would": true, "you": true, "your": true,
}

type intentRule struct {
	intent   domain.Intent
	triggers map[string]float64
}

// intentRules are keyword triggers per intent. Multi-word triggers match whole phrases.
var intentRules = []intentRule{
	{
		intent: domain.IntentTroubleshooting,
		triggers: map[string]float64{
			"error": 1, "errors": 1, "fails": 1, "failed": 1, "failing": 1, "fail": 1,
			"crash": 1, "crashes": 1, "crashing": 1, "exception": 1, "broken": 1, "bug": 1,
			"denied": 1, "refused": 1, "timeout": 1, "traceback": 1.5, "panic": 1,
			"cannot": 0.5, "cant": 0.5, "unable": 0.5, "fix": 0.5, "issue": 0.5, "wrong": 0.5,
			"not working": 1.5, "doesnt work": 1.5, "does not work": 1.5, "stack trace": 1.5,
			"segmentation fault": 1.5, "not found": 1,
		},
	},
	{
		intent: domain.IntentCodingGuidance,
		triggers: map[string]float64{
			"implement": 1, "example": 1, "refactor": 1, "convert": 1, "write": 0.5,
			"pattern": 0.5, "function": 0.5, "loop": 0.5, "parse": 0.5, "create": 0.5,
			"how to": 1, "how do i": 1.5, "how can i": 1.5, "best way": 1.5, "code for": 1,
			"best practice": 1.5,
		},
	},
	{
		intent: domain.IntentDocumentationLookup,
		triggers: map[string]float64{
			"documentation": 1.5, "docs": 1.5, "reference": 1, "manual": 1, "syntax": 1,
			"parameters": 1, "parameter": 1, "options": 0.5, "flag": 0.5, "flags": 0.5,
			"signature": 1, "changelog": 1, "api": 0.5,
			"what does": 1, "where can i find": 1.5, "official docs": 1.5,
		},
	},
	{
		intent: domain.IntentGeneralInfo,
		triggers: map[string]float64{
			"difference": 1.5, "vs": 1, "versus": 1, "compare": 1, "comparison": 1,
			"explain": 1, "overview": 1, "recommend": 1, "alternatives": 1, "pros": 1,
			"what is": 1.5, "what are": 1, "why is": 0.5, "should i": 1, "which is": 1,
		},
	},
}

// intentPrototypes seed the embedding classifier.
var intentPrototypes = map[domain.Intent][]string{
	domain.IntentTroubleshooting: {
		"npm install fails with permission denied error",
		"application crashes with exception on startup",
		"build is broken after upgrade, module not found",
		"connection refused when running the server",
	},
	domain.IntentCodingGuidance: {
		"how do i read a file line by line",
		"best way to implement a retry loop",
		"example of parsing json into a struct",
		"how to convert a string to a date",
	},
	domain.IntentDocumentationLookup: {
		"where is the documentation for the config options",
		"api reference for the client parameters",
		"what does this command line flag do",
		"official docs for the function signature",
	},
	domain.IntentGeneralInfo: {
		"what is the difference between these two frameworks",
		"should i use a relational database or a document store",
		"explain how garbage collection works",
		"recommend an alternative library",
	},
}
